// Package cli implements vaultctl, the operator command line for a
// reportvault data root.
//
// Every command works directly on the files named by the config: it never
// talks to a running daemon. enqueue drops an item into the queue directory
// the daemon watches; status, get and collections read the queue directory,
// the collection files and the ledger.
//
// Output is human-readable text by default; --format json wraps every
// result in a {"status": ..., "data": ...} envelope.
package cli
