// Package store provides the persistence backends for the Battleship server.
//
// The store package implements service.Store three ways:
//   - MemoryStore keeps games and players in maps guarded by a mutex
//   - MemoryStore with a Persistence writes a JSON snapshot per game after
//     every committed change and reloads them at startup
//   - SQLiteStore keeps everything in a SQLite database in WAL mode
//
// Transactions:
//
// Every backend implements Transact. MemoryStore runs one transaction at a
// time and stages writes in an overlay that is applied only when the
// function returns nil. SQLiteStore maps Transact onto a database
// transaction opened with BEGIN IMMEDIATE, so concurrent writers queue on the
// database lock instead of failing at commit.
//
// Usage:
//
//	st := store.NewMemoryStore()
//
//	// or, with snapshots on disk
//	fp, err := store.NewFilePersistence("data/games")
//	st := store.NewMemoryStoreWithPersistence(fp, log.Logger)
//	if err := st.LoadPersisted(); err != nil {
//		log.Warn().Err(err).Msg("some snapshots could not be loaded")
//	}
//
//	// or SQLite
//	st, err := store.OpenSQLite(ctx, "data/battleship.db")
//
// Cleanup:
//
// Games that have not changed for a while can be dropped with PruneStale.
// The server calls it periodically with its retention window.
package store
