package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// TimescaleSink archives observations into a Postgres/Timescale table:
//
//	CREATE TABLE gps_observations (
//	    session_id uuid, seq bigint, ts timestamptz,
//	    device jsonb, tpv jsonb, sky jsonb, pps jsonb, gst jsonb,
//	    PRIMARY KEY (session_id, seq)
//	);
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	sessionID string
	query     string
}

func NewTimescaleSink(db *sql.DB, table, sessionID string) (*TimescaleSink, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid archive table name %q", table)
	}
	return &TimescaleSink{
		db:        db,
		tableName: table,
		sessionID: sessionID,
		query: "INSERT INTO " + table +
			" (session_id, seq, ts, device, tpv, sky, pps, gst) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)" +
			" ON CONFLICT (session_id, seq) DO NOTHING",
	}, nil
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteObservation(ctx context.Context, seq uint64, obs *domain.Observation) error {
	if obs == nil {
		return nil
	}
	args := []any{t.sessionID, seq, obs.Timestamp}
	for _, k := range domain.AllKinds {
		args = append(args, jsonbArg(obs.Get(k)))
	}
	if _, err := t.db.ExecContext(ctx, t.query, args...); err != nil {
		return fmt.Errorf("archive insert into %s: %w", t.tableName, err)
	}
	return nil
}

// jsonbArg sends the body as text so the driver does not bytea-encode it.
func jsonbArg(r *domain.Report) any {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return string(r.Body)
}

var _ ports.ArchiveSink = (*TimescaleSink)(nil)
