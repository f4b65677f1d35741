package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fnndsc/pfbuild/notifier"
)

type DB struct {
	*sql.DB
	n *notifier.Notifier
}

// Make opens the journal at dbPath and creates its tables. n, if not nil, is
// woken whenever an event is inserted.
func Make(dbPath string, n *notifier.Notifier) (*DB, error) {
	// https://github.com/mattn/go-sqlite3#connection-string
	opts := []string{
		"_foreign_keys=1",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_auto_vacuum=incremental",
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(opts, "&"))
	if err != nil {
		return nil, err
	}

	// every connection to :memory: is its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		create table if not exists runs (
			id text primary key,
			plugin_title text not null,
			payload text not null, -- json, token redacted
			state text not null,
			error text not null default '',
			started_at integer not null default 0, -- unix nanos
			finished_at integer not null default 0,
			updated text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);

		-- one row per step transition
		create table if not exists events (
			id integer primary key autoincrement,
			run_id text not null references runs(id) on delete cascade,
			step text not null,
			state text not null,
			run_state text not null,
			response text, -- json, only for completed steps
			error text not null default '',
			created integer not null -- unix nanos
		);

		create index if not exists events_run_id on events(run_id);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, n: n}, nil
}
