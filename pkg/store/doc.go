// Package store provides ingest.Store implementations.
//
// LogStore only logs what it would persist and counts records; it backs
// dry runs and the stub service. Postgres upserts records into the
// zipbusiness_restaurants table and can create and inspect that table.
package store
