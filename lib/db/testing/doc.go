// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the db.Group interface.
//
// The package contains:
//   - testing: A test suite validating tables, rows, cells, link lists, primitive lists,
//     queries, views, aggregates, versions and persistence against the db contract
//   - benchmark: Performance tests for common engine operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.Group {
//		return NewMyEngine()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
