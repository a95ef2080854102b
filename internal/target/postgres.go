package target

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SQLSTATE class 08 is "connection exception".
const pgConnectionException = "08"

var postgresDialect = dialect{
	driver:      "pgx",
	unavailable: pgUnavailable,
}

func pgUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgConnectionException)
	}
	return pgconn.SafeToRetry(err)
}

// openPostgres connects through the pgx database/sql driver. url is a
// postgres:// URL or a key=value connection string.
func openPostgres(ctx context.Context, url string) (Conn, error) {
	return openSQL(ctx, postgresDialect, url)
}
