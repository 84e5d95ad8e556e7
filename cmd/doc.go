// Package cmd implements the command-line interface of dObj.
//
// The package is organized into several subpackages:
//
//   - bench: throughput of primitive list, link list and results operations
//   - inspect: prints the tables of a data file
//   - export: converts a data file into a SQLite database
//   - stats: runs a short workload and prints the collected metrics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable DOBJ_<flag>
// (e.g. DOBJ_DATA_FILE=data.dobj), .env and .env.local files are loaded on start.
//
// See dobj -help for a list of all commands.
package cmd
