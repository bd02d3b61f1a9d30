// ABOUTME: Registers both SQLite database/sql drivers
// ABOUTME: "sqlite" is pure Go (modernc); "sqlite3" is cgo (mattn)

package store

import (
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)
