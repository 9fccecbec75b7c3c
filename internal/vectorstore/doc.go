// Package vectorstore persists example documents with their embeddings and
// answers nearest-neighbour queries against named collections.
//
// Two backends are provided: a local SQLite file (modernc.org/sqlite, brute
// force distance in Go) and PostgreSQL with the pgvector extension. Both
// create collections on first use and never drop existing data. Query results
// are ordered by ascending distance with ties broken by identifier.
package vectorstore
