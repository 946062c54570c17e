// Package wheelhouse materializes a scenario as a directory that pip can use
// as a package index.
//
// Every (package, version) of the scenario becomes a universal wheel
// (py2.py3-none-any) holding only generated dist-info members, so installing
// from the wheelhouse exercises the resolver and nothing else:
//
//	<dir>/index.html
//	<dir>/<name>/index.html
//	<dir>/<name>/<name_>-<version_>-py2.py3-none-any.whl
//
// Output is deterministic: generating the same scenario twice yields
// byte-identical wheels and listing pages.
//
// # Usage
//
//	res, err := wheelhouse.Populate(ctx, s, "wheelhouse/requests-1", wheelhouse.Options{
//	    Workers: 8,
//	    Replace: true,
//	})
package wheelhouse
