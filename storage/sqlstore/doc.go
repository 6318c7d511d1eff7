// Package sqlstore provides the relational catalog and order store.
//
// It runs on database/sql with either PostgreSQL (lib/pq, driver "postgres")
// for hosted deployments or SQLite (mattn/go-sqlite3, driver "sqlite3") for
// local development and tests. Products and orders are stored as JSON
// documents next to the few columns used for filtering and ordering, so the
// same schema works on both engines.
//
// Open does not touch the schema; call Migrate (or run "storefront migrate")
// before first use.
package sqlstore
