// Package integration holds end-to-end tests that run real watchers against
// a temporary directory and read the results back from the ledger.
package integration
