// Package database opens the bridge's SQLite file and applies schema
// migrations.
//
// The only persistent state the bridge keeps is the device catalog, so the
// package stays small: Open, HealthCheck, InTx, and a migration runner that
// reads versioned .up.sql/.down.sql pairs from any fs.FS.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Security: all queries are parameterised and the file is chmod 0600.
package database
