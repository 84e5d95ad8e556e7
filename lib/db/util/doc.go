// Package util provides utility components shared by storage engines and the
// layers built on top of them.
//
// The package contains:
//   - statistics: size summaries (percentiles and spread) for engine info reports
//   - functions: Seed generation, goroutine ids and an FNV-1a hash over integers
package util
