// Package collections is the read/write facade business code uses: Document
// Store operations with a TTL cache in front of collection reads.
//
// Every successful mutation made through a Service invalidates that
// collection's cache entry immediately. Writes made behind the Service's back
// (another process, the ingestion queue writing straight to the store) become
// visible once the entry's TTL runs out, unless the writer calls Invalidate.
package collections
