// Package packaging implements the subset of the Python packaging standards
// that wheelbench needs to talk to a package index and to emit artifacts a
// resolver accepts.
//
// # Overview
//
// The package covers four specifications:
//
//   - PEP 503 project names: [CanonicalizeName], [IsNormalizedName]
//   - PEP 440 versions: [ParseVersion], [Version.String], [CanonicalizeVersion]
//   - PEP 508 requirements and environment markers: [ParseRequirement], [ParseMarker]
//   - PEP 425/427 compatibility tags and distribution filenames:
//     [ParseTag], [ParseWheelFilename], [ParseSdistFilename]
//
// Parsing is strict: inputs that a conforming Python tool would reject are
// rejected here too, so a scenario accepted by wheelbench is accepted by pip.
//
// # Rendering
//
// [Requirement.String] renders the same canonical form Python's packaging
// library produces. Scenario documents store dependencies in that form with
// the marker clause removed, so the rendering is part of the file format:
//
//	req, _ := packaging.ParseRequirement("Foo [b,a] (>= 1.0, < 2) ; extra == 'x'")
//	req.String() // "Foo[a,b]<2,>=1.0; extra == \"x\""
package packaging
