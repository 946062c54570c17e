// Package scenario defines the scenario document: the frozen snapshot of
// package metadata that a crawl produces and that wheel generation and
// benchmarking consume.
//
// # Document shape
//
//	{
//	  "input": {
//	    "requirements": ["requests[socks]"],
//	    "timestamp": "2024-05-01T12:00:00.000000",
//	    "allow_sdists_for": [],
//	    "environment": {"markers": {...}, "tags": ["cp312-cp312-manylinux_2_17_x86_64", ...]}
//	  },
//	  "packages": {
//	    "requests": {
//	      "2.31.0": {
//	        "depends_by_extra": {"": ["idna<4,>=2.5"], "socks": ["PySocks!=1.5.7,>=1.5.6"]},
//	        "requires_python": ">=3.7"
//	      }
//	    }
//	  }
//	}
//
// Package names are PEP 503 normalized, versions are valid PEP 440 strings
// that are unique after canonicalization, and no stored dependency carries
// a marker. [Scenario.Validate] checks all of this and reports every
// violation at once.
//
// # Storage
//
// Scenarios are stored through a [Store]: [FileStore] keeps one JSON file per
// scenario in a directory, [MongoStore] keeps them in a MongoDB collection.
// New crawls are named "<root names joined by ->-<n>.ignore" with the
// smallest unused n.
package scenario
