package db

import "database/sql"

// DBProvider is implemented by the SQL-backed clients (SQLite, Postgres,
// Supabase) so the episode store can run on any of them.
type DBProvider interface {
	DB() *sql.DB
}
