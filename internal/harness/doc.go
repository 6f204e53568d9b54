// Package harness runs YAML scenarios against a fresh in-memory store.
//
// A scenario configures permissions and priorities, drives the store
// through a list of steps on behalf of calling apps, and checks each
// step's outcome plus assertions over the final trace and access log.
//
// # Scenario Format
//
//	name: steps_priority
//	description: "Priority decides overlapping steps"
//	clock: 1700000000000
//	config:
//	  permissions:
//	    com.example.a: {write: true}
//	    com.example.viewer: {read: [STEPS]}
//	steps:
//	  - op: upsert
//	    package: com.example.a
//	    records:
//	      - {type: STEPS, start_time: 1700000000000, end_time: 1700000060000, count: 10}
//	  - op: aggregate
//	    package: com.example.viewer
//	    types: [STEPS_COUNT_TOTAL]
//	    start: 1700000000000
//	    end: 1700000060000
//	    expect:
//	      values: {STEPS_COUNT_TOTAL: 10}
//	assertions:
//	  - type: access_log_count
//	    package: com.example.viewer
//	    count: 1
//
// # Operations
//
//   - upsert: writes records, each tagged with its record type
//   - read: reads one record type by range, origins or ids
//   - aggregate: aggregates over [start, end), optionally grouped by every
//   - delete: deletes ids of one type, or every owned record of types in a range
//   - set_priority: replaces a category's priority list
//   - sweep: deletes records and access logs older than cutoff
//   - advance: moves the store clock forward by a duration
//
// # Assertion Types
//
//   - trace_count: an operation appears exactly N times in the trace
//   - trace_order: operations appear in the given relative order
//   - access_log_count: a package has exactly N access log entries
//   - access_log_order: access log entries belong to these packages, in order
//   - priority: a category's stored priority list
//
// The store clock starts at the scenario's clock and only moves on advance
// steps, so traces are reproducible and can be compared to golden files.
package harness
