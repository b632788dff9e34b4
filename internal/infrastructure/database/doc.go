// Package database opens the bridge's SQLite store and applies its schema.
//
// The store holds the accessory cache: the last known shape of every
// accessory the bridge registered, so accessory identity survives restarts
// and controllers that are slow to come back.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations:
//
// Migration files are named NNNN_description.sql and applied once each in
// name order. Each runs in its own transaction and is recorded in
// schema_migrations. There are no down migrations; schema changes are
// additive.
package database
