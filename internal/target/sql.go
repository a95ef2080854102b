package target

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/roach88/whipper/internal/resultset"
)

// dialect holds what differs between database/sql drivers.
type dialect struct {
	driver string

	// unavailable reports whether err means the server itself is gone,
	// without asking the server.
	unavailable func(err error) bool
}

// sqlConn runs statements on a single pooled connection so session state
// (temp tables, settings, in-memory databases) survives between queries.
type sqlConn struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect dialect
}

func openSQL(ctx context.Context, d dialect, dsn string) (*sqlConn, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &sqlConn{db: db, conn: conn, dialect: d}, nil
}

func (c *sqlConn) Execute(ctx context.Context, query string) (*resultset.Set, error) {
	if returnsRows(query) {
		return c.query(ctx, query)
	}
	res, err := c.conn.ExecContext(ctx, query)
	if err != nil {
		return c.failure(ctx, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to build result: %w", err)
	}
	return resultset.Update(n), nil
}

func (c *sqlConn) query(ctx context.Context, query string) (*resultset.Set, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return c.failure(ctx, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("unable to build result: %w", err)
	}
	columns := make([]resultset.Column, len(types))
	for i, ct := range types {
		columns[i] = resultset.Column{Label: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
	}

	var out [][]any
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("unable to build result: %w", err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return c.failure(ctx, err)
	}
	return resultset.Table(columns, out), nil
}

// failure turns a statement error into an error result, unless the target
// is no longer usable. A statement stopped by its context is neither.
func (c *sqlConn) failure(ctx context.Context, err error) (*resultset.Set, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("statement interrupted: %w", ctxErr)
	}
	if errors.Is(err, driver.ErrBadConn) || (c.dialect.unavailable != nil && c.dialect.unavailable(err)) {
		return nil, fmt.Errorf("%w: server not available: %v", ErrUnavailable, err)
	}
	if pingErr := c.conn.PingContext(ctx); pingErr != nil {
		return nil, fmt.Errorf("%w: database not available: %v", ErrUnavailable, err)
	}
	return resultset.Failure(errorClass(err), err.Error()), nil
}

func (c *sqlConn) Ping(ctx context.Context, query string) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	res, err := c.Execute(ctx, query)
	if err != nil {
		return err
	}
	if res.Kind == resultset.KindError {
		return fmt.Errorf("ping query failed: %s", res.Error.Message)
	}
	return nil
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// errorClass names the Go type of the driver error, such as sqlite3.Error
// or pgconn.PgError.
func errorClass(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// rowKeywords start statements that return rows.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"SHOW":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"DESCRIBE": true,
	"CALL":     true,
}

// returnsRows guesses from the leading keyword, or a RETURNING clause,
// whether query produces rows.
func returnsRows(query string) bool {
	q := strings.TrimLeftFunc(stripComments(query), func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	end := strings.IndexFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(q)
	}
	if rowKeywords[strings.ToUpper(q[:end])] {
		return true
	}
	return slices.Contains(strings.Fields(strings.ToUpper(q)), "RETURNING")
}

// stripComments drops leading -- and /* */ comments.
func stripComments(q string) string {
	for {
		q = strings.TrimSpace(q)
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = q[i+2:]
		default:
			return q
		}
	}
}
