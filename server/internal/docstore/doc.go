// Package docstore is the crash-consistent, file-backed document store.
//
// Each collection is one file, <root>/<name>.json, holding an indented JSON
// array of documents. Every document carries a string "id" that is unique
// within its collection.
//
// Writes replace the whole file: the new content goes to a temp file in the
// same directory, is fsynced, and is renamed over the target. Readers therefore
// see either the old or the new collection, never a partial one. This holds
// only while the data root lives on a single local volume; network filesystems
// and roots spanning mounts void the guarantee.
//
// Transient I/O failures are retried Options.Attempts times with a fixed
// Options.Delay. A rename that fails with a lock-violation errno (a reader or
// scanner holding the target open on Windows, EBUSY on unix) moves the target
// to a backup and retries inside the same budget. Exhausted retries put the
// backup back and surface as *StorageError.
//
// Numbers decode as json.Number, so large integers round-trip unchanged.
//
// Mutations of one collection are serialized inside the process. Two
// processes writing the same data root can still lose updates.
package docstore
