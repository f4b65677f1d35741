package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

// maxBodySize caps request payloads.
const maxBodySize = 1 << 20

// Bootstrap answers one step of the bootstrap API with a synthesized response.
func (s *Server) Bootstrap(w http.ResponseWriter, r *http.Request) {
	l := s.l.With("handler", "Bootstrap")

	name := r.URL.Query().Get("step")
	if name == "" {
		writeErr(w, models.ValidationError("missing step query parameter"))
		return
	}
	step, err := steps.Parse(name)
	if err != nil {
		writeErr(w, models.ValidationError(err.Error()))
		return
	}

	p, err := decodePayload(w, r)
	if err != nil {
		writeErr(w, err)
		return
	}

	resp, err := s.synth.Synthesize(step, p)
	if err != nil {
		l.Debug("rejected bootstrap request", "step", step, "err", err)
		writeErr(w, err)
		return
	}

	l.Debug("answered bootstrap request", "step", step, "plugin", p.PluginTitle)
	writeJson(w, http.StatusOK, resp)
}

func decodePayload(w http.ResponseWriter, r *http.Request) (models.Payload, error) {
	var p models.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&p); err != nil {
		return models.Payload{}, models.ValidationError(fmt.Sprintf("invalid payload: %v", err))
	}
	return p, nil
}
