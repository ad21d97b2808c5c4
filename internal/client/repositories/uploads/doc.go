// Package uploads provides the persistence layer for upload requests.
//
// A SQLite-backed implementation (SQLiteRepository) persists data via a
// dbx.DBTX, so the same code runs on *sql.DB and inside a transaction:
//
//	repo := uploads.NewSQLiteRepository(db)
//	_ = repo.Insert(ctx, req)
//	pending, _ := repo.List(ctx, uploads.Filter{OwnerID: owner, Statuses: []models.UploadStatus{models.StatusInitialized}})
//
// The destination manifest is stored as a JSON column; timestamps are stored
// as Unix nanoseconds.
package uploads
