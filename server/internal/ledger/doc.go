// Package ledger keeps a SQLite journal of ingestion queue outcomes.
//
// The queue deletes every item it finishes with, so without a journal there
// is no trace of what was ingested, discarded as poison, or held back for
// retry. Ledger implements queue.Recorder; it is optional and read only by
// the status API and vaultctl.
package ledger
