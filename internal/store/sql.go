package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// tableKeys lists the conflict key of every table.
var tableKeys = map[string][]string{
	TableMovies:       {"id"},
	TableGenres:       {"id"},
	TableMoviesGenres: {"movie_id", "genre_id"},
	TableTests:        {"id"},
	TableResults:      {"id"},
}

// insertOnly lists columns an upsert never overwrites.
var insertOnly = map[string][]string{
	TableMovies: {"created_at"},
}

// SQLGateway implements Gateway on a SQL database.
type SQLGateway struct {
	db      *sqlx.DB
	driver  string
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		placeholder = sq.Dollar
	case DriverSQLite:
		placeholder = sq.Question
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	logger.Debug("connected to database", zap.String("driver", driver))
	return &SQLGateway{
		db:      db,
		driver:  driver,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:  logger,
	}, nil
}

// Close closes the database.
func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// Driver returns the driver name the gateway was opened with.
func (g *SQLGateway) Driver() string {
	return g.driver
}

// Read implements Gateway.
func (g *SQLGateway) Read(ctx context.Context, dest any, table string, filter Filter, orderBy ...string) error {
	q := g.builder.Select("*").From(table).OrderBy(orderBy...)
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building select on %s: %w", table, err)
	}
	if err := sqlx.SelectContext(ctx, g.db, dest, query, args...); err != nil {
		return fmt.Errorf("reading %s: %w", table, err)
	}
	return nil
}

// Upsert implements Gateway. A record without its key columns is inserted
// and the generated id returned.
func (g *SQLGateway) Upsert(ctx context.Context, table string, record Record) (int64, error) {
	keys, ok := tableKeys[table]
	if !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	if len(record) == 0 {
		return 0, fmt.Errorf("empty record for %s", table)
	}

	columns := make([]string, 0, len(record))
	for col := range record {
		columns = append(columns, col)
	}
	slices.Sort(columns)
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = record[col]
	}

	q := g.builder.Insert(table).Columns(columns...).Values(values...)

	hasKey := true
	for _, k := range keys {
		if v, ok := record[k]; !ok || v == nil {
			hasKey = false
		}
	}
	if !hasKey {
		if !slices.Equal(keys, []string{"id"}) {
			return 0, fmt.Errorf("record for %s is missing key columns %v", table, keys)
		}
		return g.insertReturningID(ctx, table, q.Suffix("RETURNING id"))
	}

	q = q.Suffix(conflictClause(table, keys, columns))
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building upsert on %s: %w", table, err)
	}
	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("upserting %s: %w", table, err)
	}

	id, _ := record["id"].(int64)
	return id, nil
}

func (g *SQLGateway) insertReturningID(ctx context.Context, table string, q sq.InsertBuilder) (int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert on %s: %w", table, err)
	}
	var id int64
	if err := g.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting %s: %w", table, err)
	}
	return id, nil
}

// conflictClause builds "ON CONFLICT (keys) DO UPDATE SET col = excluded.col"
// for every non-key column. Both postgres and sqlite accept it.
func conflictClause(table string, keys, columns []string) string {
	var sets []string
	for _, col := range columns {
		if slices.Contains(keys, col) || slices.Contains(insertOnly[table], col) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	target := "ON CONFLICT (" + strings.Join(keys, ", ") + ")"
	if len(sets) == 0 {
		return target + " DO NOTHING"
	}
	return target + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// Update implements Gateway.
func (g *SQLGateway) Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error) {
	if len(patch) == 0 {
		return 0, nil
	}
	q := g.builder.Update(table).SetMap(patch)
	if len(filter) > 0 {
		q = q.Where(sq.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building update on %s: %w", table, err)
	}
	return g.exec(ctx, "updating "+table, query, args)
}

// Delete implements Gateway. An empty filter is refused.
func (g *SQLGateway) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("refusing to delete every row of %s", table)
	}
	query, args, err := g.builder.Delete(table).Where(sq.Eq(filter)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete on %s: %w", table, err)
	}
	return g.exec(ctx, "deleting from "+table, query, args)
}

func (g *SQLGateway) exec(ctx context.Context, what, query string, args []any) (int64, error) {
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}
