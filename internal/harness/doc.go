// Package harness runs conformance scenarios against the matcher and the
// impact classifier.
//
// # Scenario Format
//
// Scenarios are YAML files. Interactions use the recording JSON field names:
//
//	name: response_field_added
//	description: "A new response field is a minor change"
//	recorded:
//	  - method: GET
//	    scope: https://api.example.com
//	    path: /a
//	    status: 200
//	    response: { x: 1 }
//	current:
//	  - method: GET
//	    scope: https://api.example.com
//	    path: /a
//	    status: 200
//	    response: { x: 1, y: 2 }
//	expect:
//	  impact: minor
//	  findings:
//	    - { bucket: added, kind: RESPONSE, index: 0 }
//
// # Expectations
//
//   - impact: the classified level (required)
//   - valid: whether the matcher reports no findings (defaults to impact == none)
//   - findings: the exact findings, compared on bucket, kind, index and header
//   - error: a substring of the error Match must return instead of a result
//
// Each passing scenario also has a golden report under testdata/golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
