package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/pipeline"
)

var ErrNotFound = errors.New("not found")

// RunRecord is the journaled summary of a run.
type RunRecord struct {
	Id          string            `json:"id"`
	PluginTitle string            `json:"plugin_title"`
	Payload     models.Payload    `json:"payload"`
	State       pipeline.RunState `json:"state"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at,omitzero"`
	FinishedAt  time.Time         `json:"finished_at,omitzero"`
}

// RecordRun upserts the summary of run. Runs without an id (never started)
// are ignored.
func (d *DB) RecordRun(run pipeline.Run) error {
	if run.ID == "" {
		return nil
	}

	payload, err := json.Marshal(run.Payload.Redacted())
	if err != nil {
		return err
	}

	_, err = d.Exec(`
		insert into runs (id, plugin_title, payload, state, error, started_at, finished_at)
		values (?, ?, ?, ?, ?, ?, ?)
		on conflict(id) do update set
			state = excluded.state,
			error = excluded.error,
			finished_at = excluded.finished_at,
			updated = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
	`,
		run.ID,
		run.Payload.PluginTitle,
		string(payload),
		string(run.State),
		run.Error,
		unixNano(run.StartedAt),
		unixNano(run.FinishedAt),
	)
	return err
}

func (d *DB) GetRun(id string) (*RunRecord, error) {
	row := d.QueryRow(`
		select id, plugin_title, payload, state, error, started_at, finished_at
		from runs
		where id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns up to limit runs, most recently started first.
func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := d.Query(`
		select id, plugin_title, payload, state, error, started_at, finished_at
		from runs
		order by started_at desc
		limit ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var (
		r                 RunRecord
		payload, state    string
		started, finished int64
	)
	if err := s.Scan(&r.Id, &r.PluginTitle, &payload, &state, &r.Error, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload of run %s: %w", r.Id, err)
	}
	r.State = pipeline.RunState(state)
	r.StartedAt = fromUnixNano(started)
	r.FinishedAt = fromUnixNano(finished)
	return &r, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
