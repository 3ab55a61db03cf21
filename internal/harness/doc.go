// Package harness runs conformance scenarios for path compilation.
//
// A scenario compiles a set of CUE model declarations, then pushes path
// expressions through the whole pipeline: walk, validate, reduce, lower,
// plan. Every outcome is appended to a trace that assertions and golden
// files are checked against.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: collection_navigation
//	description: "Collections need [each] before their elements"
//	specs:
//	  - shop.cue
//	cases:
//	  - name: products
//	    root: Order
//	    paths: ["o.LineItems[each].Product"]
//	    expect:
//	      calls:
//	        - "Include(func(x Order) any { return x.LineItems })"
//	        - "ThenIncludeMany(func(x LineItem) any { return x.Product })"
//	  - name: missing_marker
//	    root: Order
//	    paths: ["o.LineItems.Product"]
//	    expect:
//	      findings: [E102]
//	assertions:
//	  - type: trace_contains
//	    case: missing_marker
//	    kind: fix
//	    text: "o.LineItems[each].Product"
//	  - type: final_state
//	    table: plans
//	    where: { spec: products }
//	    expect: { root: Order }
//
// # Assertion Types
//
//   - trace_contains: an event of the case (and kind) contains text
//   - trace_order: the texts appear in the trace in order
//   - trace_count: exactly count events of the case (and kind)
//   - same_plan: the listed cases lower to identical plans
//   - final_state: a row of the plan store matches where and expect
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory plan store with a step
// clock and sequential run IDs, so traces and stored rows are identical
// between runs and can be compared byte for byte with golden files.
package harness
