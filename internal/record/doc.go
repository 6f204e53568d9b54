// Package record defines the typed health records and the static registry
// that maps each record-type discriminator to its storage layout.
//
// The registry is a closed table of Helpers keyed by Type. Each Helper
// carries the per-type column definitions plus three function entries:
// populate (record -> column values), decode (row -> record) and childRows
// (record -> child-table rows). Registration happens once in init and is
// total: every Type constant resolves to exactly one Helper.
package record
