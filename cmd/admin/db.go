package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	regionID := fs.String("region", "region_1", "region id")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	kind := fs.String("kind", "", "kind filter (endings, collisions)")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "regions", *regionID, "index", "region.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}
	k := strings.ToUpper(strings.TrimSpace(*kind))

	if err := runQuery(db, q, *regionID, k, *limit, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-region REGION|-db PATH] [-kind K] [-limit N] ticks|endings|collisions|totals|catalogs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q, regionID, kind string, limit int, emit func(any)) error {
	switch q {
	case "ticks":
		rows, err := db.Query(`SELECT tick,live,advanced,terminated,faults,candidates,pairs_tested,collisions FROM ticks WHERE region=? ORDER BY tick DESC LIMIT ?`, regionID, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        uint64 `json:"tick"`
				Live        int    `json:"live"`
				Advanced    int    `json:"advanced"`
				Terminated  int    `json:"terminated"`
				Faults      int    `json:"faults"`
				Candidates  int    `json:"candidates"`
				PairsTested int    `json:"pairs_tested"`
				Collisions  int    `json:"collisions"`
			}
			if err := rows.Scan(&r.Tick, &r.Live, &r.Advanced, &r.Terminated, &r.Faults, &r.Candidates, &r.PairsTested, &r.Collisions); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "endings":
		query := `SELECT effect,tick,kind,owner,reason,age FROM endings WHERE region=? ORDER BY tick DESC LIMIT ?`
		args := []any{regionID, limit}
		if kind != "" {
			query = `SELECT effect,tick,kind,owner,reason,age FROM endings WHERE region=? AND kind=? ORDER BY tick DESC LIMIT ?`
			args = []any{regionID, kind, limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Effect string `json:"effect"`
				Tick   uint64 `json:"tick"`
				Kind   string `json:"kind"`
				Owner  string `json:"owner"`
				Reason string `json:"reason"`
				Age    int    `json:"age"`
			}
			if err := rows.Scan(&r.Effect, &r.Tick, &r.Kind, &r.Owner, &r.Reason, &r.Age); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "collisions":
		query := `SELECT tick,effect_a,effect_b,kind_a,kind_b,removed_a,removed_b FROM collisions WHERE region=? ORDER BY tick DESC, seq LIMIT ?`
		args := []any{regionID, limit}
		if kind != "" {
			query = `SELECT tick,effect_a,effect_b,kind_a,kind_b,removed_a,removed_b FROM collisions WHERE region=? AND (kind_a=? OR kind_b=?) ORDER BY tick DESC, seq LIMIT ?`
			args = []any{regionID, kind, kind, limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     uint64 `json:"tick"`
				EffectA  string `json:"effect_a"`
				EffectB  string `json:"effect_b"`
				KindA    string `json:"kind_a"`
				KindB    string `json:"kind_b"`
				RemovedA bool   `json:"removed_a"`
				RemovedB bool   `json:"removed_b"`
			}
			if err := rows.Scan(&r.Tick, &r.EffectA, &r.EffectB, &r.KindA, &r.KindB, &r.RemovedA, &r.RemovedB); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "totals":
		rows, err := db.Query(`SELECT kind, reason, COUNT(*) FROM endings WHERE region=? GROUP BY kind, reason ORDER BY kind, reason`, regionID)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Kind   string `json:"kind"`
				Reason string `json:"reason"`
				Count  int    `json:"count"`
			}
			if err := rows.Scan(&r.Kind, &r.Reason, &r.Count); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
