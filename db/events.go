package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/pipeline"
	"github.com/fnndsc/pfbuild/steps"
)

// Event is one journaled step transition, in the form streamed to clients.
type Event struct {
	Id       int64             `json:"id"`
	RunId    string            `json:"run_id"`
	Step     steps.Id          `json:"step"`
	State    models.StepState  `json:"state"`
	RunState pipeline.RunState `json:"run_state"`
	Response *models.Response  `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
	Created  int64             `json:"created"`
}

func (d *DB) InsertEvent(event Event) error {
	var response sql.NullString
	if event.Response != nil {
		b, err := json.Marshal(event.Response)
		if err != nil {
			return err
		}
		response = sql.NullString{String: string(b), Valid: true}
	}

	created := event.Created
	if created == 0 {
		created = time.Now().UnixNano()
	}

	_, err := d.Exec(
		`insert into events (run_id, step, state, run_state, response, error, created) values (?, ?, ?, ?, ?, ?, ?)`,
		event.RunId,
		string(event.Step),
		string(event.State),
		string(event.RunState),
		response,
		event.Error,
		created,
	)

	if d.n != nil {
		d.n.NotifyAll()
	}

	return err
}

// RecordTransition journals t. With RecordRun it makes *DB a
// pipeline.Recorder.
func (d *DB) RecordTransition(t pipeline.Transition) error {
	return d.InsertEvent(Event{
		RunId:    t.RunID,
		Step:     t.Step,
		State:    t.State,
		RunState: t.RunState,
		Response: t.Response,
		Error:    t.FailureMessage(),
	})
}

// GetEvents returns up to 100 events with an id greater than cursor, oldest
// first.
func (d *DB) GetEvents(cursor int64) ([]Event, error) {
	rows, err := d.Query(`
		select id, run_id, step, state, run_state, response, error, created
		from events
		where id > ?
		order by id asc
		limit 100
	`, cursor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evts []Event
	for rows.Next() {
		var (
			ev                    Event
			step, state, runState string
			response              sql.NullString
		)
		if err := rows.Scan(&ev.Id, &ev.RunId, &step, &state, &runState, &response, &ev.Error, &ev.Created); err != nil {
			return nil, err
		}
		ev.Step = steps.Id(step)
		ev.State = models.StepState(state)
		ev.RunState = pipeline.RunState(runState)
		if response.Valid {
			var r models.Response
			if err := json.Unmarshal([]byte(response.String), &r); err != nil {
				return nil, err
			}
			ev.Response = &r
		}
		evts = append(evts, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return evts, nil
}
