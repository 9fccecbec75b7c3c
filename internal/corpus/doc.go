// Package corpus adds labelled example documents to the similarity
// collection.
//
// Writers hold an exclusive file lock for the duration of an ingest so that
// concurrent `filmroom corpus add` invocations serialise. The analysis
// pipeline never writes to the collection and does not take the lock.
package corpus
