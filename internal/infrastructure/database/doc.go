// Package database provides the SQLite connection and schema migrations for
// the access service.
//
// Foreign keys are always enabled; the permission table relies on them for
// referential integrity with users and applications. Multi-statement writes
// (cascading deletes, token rotation) go through WithTx so they commit or
// roll back as a unit.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
