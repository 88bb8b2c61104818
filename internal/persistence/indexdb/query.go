package indexdb

import (
	"context"
	"database/sql"
	"errors"
)

type EndingTotal struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type PairTotal struct {
	KindA    string `json:"kind_a"`
	KindB    string `json:"kind_b"`
	Count    int    `json:"count"`
	RemovedA int    `json:"removed_a"`
	RemovedB int    `json:"removed_b"`
}

// LastTick returns the newest indexed tick of regionID.
func (s *SQLiteIndex) LastTick(ctx context.Context, regionID string) (uint64, bool, error) {
	var tick sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(tick) FROM ticks WHERE region = ?`, regionID).Scan(&tick)
	if err != nil {
		return 0, false, err
	}
	if !tick.Valid {
		return 0, false, nil
	}
	return uint64(tick.Int64), true, nil
}

// EndingTotals counts finished instances by kind and reason.
func (s *SQLiteIndex) EndingTotals(ctx context.Context, regionID string) ([]EndingTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, reason, COUNT(*) FROM endings
		WHERE region = ?
		GROUP BY kind, reason
		ORDER BY kind, reason`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EndingTotal
	for rows.Next() {
		var t EndingTotal
		if err := rows.Scan(&t.Kind, &t.Reason, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PairTotals counts collisions by kind pair as the engine reported them.
func (s *SQLiteIndex) PairTotals(ctx context.Context, regionID string) ([]PairTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind_a, kind_b, COUNT(*), SUM(removed_a), SUM(removed_b) FROM collisions
		WHERE region = ?
		GROUP BY kind_a, kind_b
		ORDER BY kind_a, kind_b`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PairTotal
	for rows.Next() {
		var t PairTotal
		if err := rows.Scan(&t.KindA, &t.KindB, &t.Count, &t.RemovedA, &t.RemovedB); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CatalogDigest returns the digest stored by UpsertCatalogs for name.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return digest, err
}
