package server

import (
	"fmt"
	"iter"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fnndsc/pfbuild/completion"
	"github.com/fnndsc/pfbuild/db"
	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/pipeline"
	"github.com/fnndsc/pfbuild/queue"
	"github.com/fnndsc/pfbuild/steps"
)

// listLimit bounds GET /sessions.
const listLimit = 50

// session is the client view of one orchestrator.
type session struct {
	Id  string       `json:"id"`
	Run pipeline.Run `json:"run"`
}

func newSession(id string, run pipeline.Run) session {
	run.Payload = run.Payload.Redacted()
	return session{Id: id, Run: run}
}

func (s *Server) newOrchestrator(id string) *pipeline.Orchestrator {
	return pipeline.New(s.exec,
		pipeline.WithLogger(log.SubLogger(s.l, "session").With("session", id)),
		pipeline.WithRecorder(s.db),
		pipeline.WithServiceURL(s.cfg.Pipeline.ServiceURL),
	)
}

func (s *Server) lookup(r *http.Request) (string, *pipeline.Orchestrator, bool) {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	o, ok := s.sessions[id]
	s.mu.RUnlock()
	return id, o, ok
}

// enqueue hands the transitions of a started run to a worker. When the queue
// refuses the job the run is aborted right away, so it never stays running.
func (s *Server) enqueue(id string, o *pipeline.Orchestrator, seq iter.Seq[pipeline.Transition]) bool {
	ok := s.jq.Enqueue(queue.Job{
		Run: func() error {
			_, err := o.Drain(seq)
			return err
		},
		OnFail: func(err error) {
			s.l.Warn("run aborted", "session", id, "err", err)
		},
	})
	if !ok {
		for range seq {
			break
		}
	}
	return ok
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	if !s.hasRoom() {
		writeError(w, sessionsFullError, http.StatusServiceUnavailable)
		return
	}

	id := uuid.NewString()
	o := s.newOrchestrator(id)

	seq, err := o.Start(s.ctx, p)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !s.enqueue(id, o, seq) {
		writeError(w, queueFullError, http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	s.sessions[id] = o
	s.mu.Unlock()

	s.l.Info("created session", "session", id, "plugin", p.PluginTitle)
	writeJson(w, http.StatusAccepted, newSession(id, o.CurrentState()))
}

// hasRoom reports whether another session fits. When the store is full,
// every session that is not running is dropped first.
func (s *Server) hasRoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) < s.cfg.Server.MaxSessions {
		return true
	}
	for id, o := range s.sessions {
		if o.CurrentState().State != pipeline.RunRunning {
			delete(s.sessions, id)
		}
	}
	if n := len(s.sessions); n < s.cfg.Server.MaxSessions {
		s.l.Info("evicted finished sessions", "remaining", n)
		return true
	}
	return false
}

// DeleteSession forgets a session. Its journal stays in the db.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	o, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}
	if o.CurrentState().State == pipeline.RunRunning {
		s.mu.Unlock()
		writeErr(w, models.InvalidStateError("cannot delete a running session"))
		return
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.l.Info("deleted session", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRuns(listLimit)
	if err != nil {
		s.l.Error("failed to list runs", "err", err)
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	writeJson(w, http.StatusOK, runs)
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, o, ok := s.lookup(r)
	if !ok {
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}
	writeJson(w, http.StatusOK, newSession(id, o.CurrentState()))
}

// StartSession starts a fresh run on a session that was reset.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	id, o, ok := s.lookup(r)
	if !ok {
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}

	p, err := decodePayload(w, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	seq, err := o.Start(s.ctx, p)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !s.enqueue(id, o, seq) {
		writeError(w, queueFullError, http.StatusServiceUnavailable)
		return
	}

	writeJson(w, http.StatusAccepted, newSession(id, o.CurrentState()))
}

func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	id, o, ok := s.lookup(r)
	if !ok {
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}

	run, err := o.Reset()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, newSession(id, run))
}

// StepResponse returns the stored response of a completed step.
func (s *Server) StepResponse(w http.ResponseWriter, r *http.Request) {
	_, o, ok := s.lookup(r)
	if !ok {
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}

	step, err := steps.Parse(chi.URLParam(r, "step"))
	if err != nil {
		writeErr(w, models.ValidationError(err.Error()))
		return
	}

	resp, ok := o.ResponseFor(step)
	if !ok {
		writeError(w, apiError{
			Tag:     "NotFound",
			Message: fmt.Sprintf("step %s has not completed", step),
		}, http.StatusNotFound)
		return
	}
	writeJson(w, http.StatusOK, resp)
}

func (s *Server) Completion(w http.ResponseWriter, r *http.Request) {
	_, o, ok := s.lookup(r)
	if !ok {
		writeError(w, notFoundError, http.StatusNotFound)
		return
	}

	artifact, ok := completion.Notify(o.CurrentState())
	if !ok {
		writeError(w, apiError{
			Tag:     "NotFound",
			Message: "run has not succeeded",
		}, http.StatusNotFound)
		return
	}
	writeJson(w, http.StatusOK, artifact)
}
