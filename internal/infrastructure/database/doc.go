// Package database opens the bridge's SQLite file and applies the embedded
// schema migrations.
//
// SQLite backs the persistent key-value store (topic cache and delivered
// snapshot log) when store.backend is "sqlite". Migrations are forward
// only; each file is applied once and recorded in schema_migrations.
package database
