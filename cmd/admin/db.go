package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] [-from_tick T] [-actor ID] snapshots|ticks|audits|palette|meta"

type dbQuery struct {
	Name     string
	Limit    int
	FromTick uint64
	Actor    string
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	fromTick := fs.Uint64("from_tick", 0, "lowest tick for ticks/audits")
	actor := fs.String("actor", "", "session id filter (audits)")
	_ = fs.Parse(args)

	q := dbQuery{Name: "snapshots", Limit: *limit, FromTick: *fromTick, Actor: strings.TrimSpace(*actor)}
	if fs.NArg() > 0 {
		q.Name = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runDBQuery(db, q, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, dbUsage)
		os.Exit(1)
	}
}

// runDBQuery prints one JSON object per row of the named query to out.
func runDBQuery(db *sql.DB, q dbQuery, out io.Writer) error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	enc := newJSONEncoder(out)

	switch q.Name {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,chunks,solid_blocks FROM snapshots ORDER BY tick DESC LIMIT ?`, q.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        int64  `json:"tick"`
				Path        string `json:"path"`
				Chunks      int    `json:"chunks"`
				SolidBlocks int    `json:"solid_blocks"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Chunks, &r.SolidBlocks); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,actions,powered,active_sources FROM ticks WHERE tick>=? ORDER BY tick LIMIT ?`, q.FromTick, q.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick          int64  `json:"tick"`
				Digest        string `json:"digest"`
				Actions       int    `json:"actions"`
				Powered       int    `json:"powered"`
				ActiveSources int    `json:"active_sources"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Actions, &r.Powered, &r.ActiveSources); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "audits":
		sqlq := `SELECT tick,actor,action,x,y,z,from_block,to_block,reason FROM audits WHERE tick>=? ORDER BY tick,seq LIMIT ?`
		args := []any{q.FromTick, q.Limit}
		if q.Actor != "" {
			sqlq = `SELECT tick,actor,action,x,y,z,from_block,to_block,reason FROM audits WHERE tick>=? AND actor=? ORDER BY tick,seq LIMIT ?`
			args = []any{q.FromTick, q.Actor, q.Limit}
		}
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64          `json:"tick"`
				Actor  string         `json:"actor"`
				Action string         `json:"action"`
				Pos    [3]int         `json:"pos"`
				From   string         `json:"from"`
				To     string         `json:"to"`
				Reason sql.NullString `json:"-"`
				Note   string         `json:"reason,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.Actor, &r.Action, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.From, &r.To, &r.Reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Note = r.Reason.String
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "palette":
		rows, err := db.Query(`SELECT id,name,display_name,solid,conducts,source,consumer FROM palette ORDER BY id`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID          int    `json:"id"`
				Name        string `json:"name"`
				DisplayName string `json:"display_name"`
				Solid       bool   `json:"solid"`
				Conducts    bool   `json:"conducts"`
				Source      bool   `json:"source"`
				Consumer    bool   `json:"consumer"`
			}
			if err := rows.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Solid, &r.Conducts, &r.Source, &r.Consumer); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q.Name)
	}
}
