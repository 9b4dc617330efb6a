// Package harness runs YAML conformance scenarios against the connector.
//
// A scenario declares models (inline or from a CUE file) and a list of
// steps. Each step calls one connector operation and may carry an expect
// clause:
//
//	name: create_and_find
//	description: "created documents come back in ORM shape"
//	models:
//	  - name: User
//	    properties:
//	      name: {type: String, required: true}
//	steps:
//	  - op: create
//	    model: User
//	    data: {name: ada}
//	  - op: find
//	    model: User
//	    id: 1
//	    expect:
//	      result: {name: ada}
//
// Scenarios run in a fresh in-memory database with sequential ids, so the
// n-th generated id is doc.SequenceID(n). An integer id in a step names
// that id. Every step is recorded in the result trace, which RunWithGolden
// compares against testdata/golden/<name>.golden.
package harness
