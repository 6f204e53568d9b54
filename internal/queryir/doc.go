// Package queryir is the request vocabulary of the health store's query
// builder.
//
// Every storage operation (record upsert, permission-filtered read, resource
// delete, aggregation load) is expressed purely in terms of five request
// primitives, so permission, dedupe and aggregation logic never hand-writes
// query text:
//
//	ReadRequest         table + join chain + where + order-by + limit + distinct + UNION legs
//	UpsertRequest       table + values + unique groups + child upserts + child tables to rewrite
//	DeleteRequest       table + id filter + owner restriction + delete-by-sub-select
//	CreateTableRequest  table definition + child tables
//	Predicate           boolean where-clause tree
//
// Backends compile these into their own dialect (see internal/querysql). All
// literal values travel as bound parameters; only identifiers appear in query
// text, and Validate rejects identifiers that are not plain column or table
// names.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method so backends can switch
// exhaustively over the closed set of node types:
//
//	switch p := pred.(type) {
//	case Equals, In, Compare, IsNull, And, Or, InSubquery:
//	    ...
//	}
package queryir
