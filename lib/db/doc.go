// Package db defines the contract between the collection accessors and a storage engine.
//
// An engine provides groups of tables with typed columns, link lists between rows,
// primitive lists stored as single column subtables, immutable queries and
// materialized views. Every handle (table, link list, view) can become detached
// when the structure behind it is removed, callers must check IsAttached or rely
// on the documented NotFound / ErrDetached results.
//
// Engines can vary in their feature support, which can be queried with Group.SupportsFeature.
// The conformance suite in lib/db/testing validates an engine against this contract.
package db
