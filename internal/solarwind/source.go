package solarwind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// Selecter runs a query and scans all rows into dest. driver.Conn satisfies
// it.
type Selecter interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// Open connects to ClickHouse with LZ4 compression and verifies the
// connection.
func Open(ctx context.Context, addr, database, user, password string) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open %s: %w", addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", addr, err)
	}
	return conn, nil
}

// ClickHouseSource reads plasma state rows from a table written by
// state-prep.
type ClickHouseSource struct {
	conn  Selecter
	table string
}

// NewClickHouseSource returns a source for the fully qualified table name.
func NewClickHouseSource(conn Selecter, table string) *ClickHouseSource {
	return &ClickHouseSource{conn: conn, table: table}
}

// Load returns state rows with start <= time < end, ordered by time. A zero
// end means no upper bound.
func (s *ClickHouseSource) Load(ctx context.Context, start, end time.Time) (*frame.Frame, error) {
	var (
		where []string
		args  []any
	)
	if !start.IsZero() {
		where = append(where, "time >= ?")
		args = append(args, start)
	}
	if !end.IsZero() {
		where = append(where, "time < ?")
		args = append(args, end)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(Columns, ", "), s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time"

	var recs []Record
	if err := s.conn.Select(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("select state from %s: %w", s.table, err)
	}
	return ToFrame(recs)
}
