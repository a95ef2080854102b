package target

import (
	"context"
	"errors"

	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	driver: "sqlite3",
	unavailable: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code == sqlite3.ErrCantOpen || se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
	},
}

// openSQLite opens a SQLite database. url is a file path, a file: URI or
// :memory:.
func openSQLite(ctx context.Context, url string) (Conn, error) {
	return openSQL(ctx, sqliteDialect, url)
}
