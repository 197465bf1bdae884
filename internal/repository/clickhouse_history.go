package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	applogger "ZeroDTE/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHHistoryStore implements HistoryStore over a ClickHouse bar table with
// columns (bucket, ticker, resolution, open, high, low, close, volume).
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHHistoryStore binds the store to a "db.table" or "table" name.
func NewCHHistoryStore(db *sql.DB, table string, l *applogger.Logger) (*CHHistoryStore, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("clickhouse history: invalid table name %q", table)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHHistoryStore{db: db, table: table, l: l}, nil
}

func (s *CHHistoryStore) GetBars(ctx context.Context, ticker string, from, to time.Time, iv domrepo.Interval) ([]models.Bar, error) {
	if !domrepo.IsValidInterval(iv) {
		return nil, fmt.Errorf("unsupported interval: %s", iv)
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket, ticker, open, high, low, close, volume
        FROM %s
        WHERE ticker = ? AND resolution = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(iv), from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.String("interval", string(iv)),
			applogger.Error(err))
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, 256)
	if err != nil {
		return nil, err
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHHistoryStore) GetLatestNBars(ctx context.Context, ticker string, n int, iv domrepo.Interval) ([]models.Bar, error) {
	if !domrepo.IsValidInterval(iv) {
		return nil, fmt.Errorf("unsupported interval: %s", iv)
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket, ticker, open, high, low, close, volume
        FROM %s
        WHERE ticker = ? AND resolution = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(iv), n)
	if err != nil {
		s.l.Error("clickhouse latest_bars query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Int("limit", n),
			applogger.Error(err))
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp, err := scanBars(rows, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("clickhouse latest_bars ok",
		applogger.String("ticker", ticker),
		applogger.Int("limit", n),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)))
	return tmp, nil
}

func scanBars(rows *sql.Rows, capHint int) ([]models.Bar, error) {
	if capHint <= 0 {
		capHint = 16
	}
	out := make([]models.Bar, 0, capHint)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Bucket, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)
