// Package postgres implements store.Store using pgx/v5 with raw SQL.
//
// Every lease is a row in jobhost_leases. Locks are taken and checked with
// conditional UPDATEs evaluated against the database clock, so instances
// with skewed clocks still agree on expiry. The schema ships as embedded SQL
// migrations tracked in jobhost_migrations.
package postgres
