// Package queue is the directory-watch-driven ingestion queue.
//
// Producers enqueue work by dropping a JSON file into the queue directory;
// nothing calls into this package to submit an item. A Queue watches the
// directory with fsnotify, turns filesystem notifications into Events, and
// feeds them one at a time to Handle, which parses the file, appends the
// document to the target collection, and then deletes the file.
//
// Per item:
//
//	not *.json, hidden, or empty  -> Skipped   (left untouched)
//	empty past Config.EmptyGrace  -> Poisoned
//	bad JSON / not an object      -> Poisoned  (deleted, or moved to the dead-letter dir)
//	duplicate or invalid document -> Poisoned
//	storage failure               -> Retained  (left in place, retried on the next scan)
//	appended                      -> Ingested  (deleted)
//
// Items without an "id" get the file name stem as their id, so re-processing a
// file whose delete failed is rejected as a duplicate instead of stored twice.
//
// A single failure never stops the watch loop. Retained items are retried by
// the periodic rescan and by the initial scan on the next Start.
//
// Two processes consuming the same directory can both read an item before
// either deletes it. Config.Exclusive takes an advisory flock on the
// directory so a second consumer fails to start; it is not a claim protocol.
package queue
