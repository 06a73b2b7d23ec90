package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Reader loads bars, corporate actions and security metadata from a duckdb
// database with the tables created by Schema.
type Reader struct {
	dataSourceName string
	db             *sql.DB
}

const Schema = `
CREATE TABLE IF NOT EXISTS bars (
	security  VARCHAR NOT NULL,
	frequency VARCHAR NOT NULL,
	ts        TIMESTAMP NOT NULL,
	open      DECIMAL(18, 4) NOT NULL,
	high      DECIMAL(18, 4) NOT NULL,
	low       DECIMAL(18, 4) NOT NULL,
	close     DECIMAL(18, 4) NOT NULL,
	volume    BIGINT NOT NULL,
	turnover  DECIMAL(18, 2) NOT NULL DEFAULT 0,
	pre_close DECIMAL(18, 4) NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS corporate_actions (
	security       VARCHAR NOT NULL,
	ex_date        DATE NOT NULL,
	cash_per_share DECIMAL(18, 6) NOT NULL DEFAULT 0,
	share_ratio    DECIMAL(18, 6) NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS securities (
	security VARCHAR PRIMARY KEY,
	name     VARCHAR NOT NULL DEFAULT '',
	board    VARCHAR NOT NULL,
	st       BOOLEAN NOT NULL DEFAULT false
);`

func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", r.dataSourceName, err)
	}
	r.db = db
	return nil
}

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// DB exposes the connection, mainly for seeding test databases.
func (r *Reader) DB() *sql.DB {
	return r.db
}

func (r *Reader) CreateSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return nil
}

// LoadBars reads the bars of securities between from and to into memory.
// Decimal columns are cast to text so no precision is lost on the way.
func (r *Reader) LoadBars(ctx context.Context, securities []string, frequency common.Frequency, from, to time.Time) (*datasource.MemorySource, error) {
	const query = `
SELECT security, ts,
       CAST(open AS VARCHAR), CAST(high AS VARCHAR), CAST(low AS VARCHAR), CAST(close AS VARCHAR),
       volume, CAST(turnover AS VARCHAR), CAST(pre_close AS VARCHAR)
FROM bars
WHERE security = ? AND frequency = ? AND ts BETWEEN ? AND ?
ORDER BY ts`

	src := datasource.NewMemorySource()
	for _, security := range securities {
		rows, err := r.db.QueryContext(ctx, query, security, string(frequency), from, to)
		if err != nil {
			return nil, fmt.Errorf("error preparing query: %w", err)
		}
		bars, err := scanBars(rows, frequency, from.Location())
		if err != nil {
			return nil, err
		}
		src.Add(bars...)
	}
	return src, nil
}

func scanBars(rows *sql.Rows, frequency common.Frequency, loc *time.Location) ([]common.Bar, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var bars []common.Bar
	for rows.Next() {
		var b common.Bar
		var ts time.Time
		var open, high, low, closePrice, turnover, preClose string
		if err := rows.Scan(&b.Security, &ts, &open, &high, &low, &closePrice, &b.Volume, &turnover, &preClose); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		var err error
		fields := []struct {
			dst *fixed.Point
			src string
		}{
			{&b.Open, open}, {&b.High, high}, {&b.Low, low}, {&b.Close, closePrice},
			{&b.Turnover, turnover}, {&b.PreClose, preClose},
		}
		for _, f := range fields {
			if *f.dst, err = fixed.Parse(f.src); err != nil {
				return nil, fmt.Errorf("%w: %s at %s: %w", datasource.ErrDataIntegrity, b.Security, ts, err)
			}
		}
		b.Frequency = frequency
		b.TimeStamp = ts.In(loc)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return bars, nil
}

func (r *Reader) LoadCorporateActions(ctx context.Context, from, to time.Time) ([]common.CorporateAction, error) {
	const query = `
SELECT security, ex_date, CAST(cash_per_share AS VARCHAR), CAST(share_ratio AS VARCHAR)
FROM corporate_actions
WHERE ex_date BETWEEN ? AND ?
ORDER BY ex_date, security`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var actions []common.CorporateAction
	for rows.Next() {
		var (
			a           common.CorporateAction
			exDate      time.Time
			cash, ratio string
		)
		if err := rows.Scan(&a.Security, &exDate, &cash, &ratio); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		if a.CashPerShare, err = fixed.Parse(cash); err != nil {
			return nil, fmt.Errorf("%w: cash per share of %s: %w", datasource.ErrDataIntegrity, a.Security, err)
		}
		if a.ShareRatio, err = fixed.Parse(ratio); err != nil {
			return nil, fmt.Errorf("%w: share ratio of %s: %w", datasource.ErrDataIntegrity, a.Security, err)
		}
		y, m, d := exDate.Date()
		a.ExDate = time.Date(y, m, d, 0, 0, 0, 0, from.Location())
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return actions, nil
}

func (r *Reader) LoadSecurities(ctx context.Context) ([]exchange.SymbolInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT security, name, board, st FROM securities ORDER BY security`)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []exchange.SymbolInfo
	for rows.Next() {
		var info exchange.SymbolInfo
		var board string
		if err := rows.Scan(&info.Security, &info.Name, &board, &info.SpecialTreatment); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		if info.Board, err = exchange.ParseBoard(board); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", datasource.ErrDataIntegrity, info.Security, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return out, nil
}
