// Package harness provides conformance testing for sheetflow patterns.
//
// The harness loads a scenario, applies its pattern to an in-memory sheet
// through the real executor, and checks the resulting job and cells against
// the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	sheet:
//	  id: orders
//	  rows:
//	    - [Item, Price, Qty]
//	    - [Widget, "4", "3"]
//	pattern:                 # same shape as a pattern import payload
//	  name: rename qty
//	  steps:
//	    - seq: 1
//	      type: SET_COLUMN_NAME
//	      params: { header_row_index: 0, to_header: Quantity, column_ref: { index: 2 } }
//	faults:
//	  - method: BatchUpdateCells
//	    call: 1
//	    error: sheet offline
//	retries: 1
//	expect:
//	  status: succeeded
//	  progress: 1
//	  attempts: 2
//	  cells: { C1: Quantity }
//	  highlights: { D2: "#FFEB3B" }
//	  calls: { InsertRows: 1 }
//
// The pattern block is validated against the import schema before it runs.
// Faults fail the n-th call of a sheet method (0 fails every call). Each
// retry heals the sheet and retries the failed job.
//
// # Deterministic Testing
//
// Every scenario runs with a deterministic clock, sequence ids ("job-1",
// "op-1") and a fresh in-memory SQLite store recording the job, so final
// snapshots are stable for golden comparison:
//
//	go test ./internal/harness -update
package harness
