// Package integration holds end-to-end tests that drive configuration,
// the indexer, the repository watcher and the rescan journal together
// against on-disk repositories.
package integration
