package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
	"github.com/fnndsc/pfbuild/synth"
)

// SynthTransport answers requests from a Synthesizer in process. Latency is
// waited out before every answer, honouring ctx.
type SynthTransport struct {
	Synth   *synth.Synthesizer
	Latency time.Duration
}

func NewSynthTransport(s *synth.Synthesizer, latency time.Duration) *SynthTransport {
	if s == nil {
		s = synth.New()
	}
	return &SynthTransport{Synth: s, Latency: latency}
}

func (t *SynthTransport) Do(ctx context.Context, req *Request) (models.Response, error) {
	name := req.Step()
	if name == "" {
		return models.Response{}, models.ValidationError("invalid URL: missing 'step' parameter")
	}
	step, err := steps.Parse(string(name))
	if err != nil {
		return models.Response{}, models.ValidationError(fmt.Sprintf("missing/invalid step: %v", err))
	}

	var p models.Payload
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &p); err != nil {
			return models.Response{}, models.WithStep(models.ValidationError(fmt.Sprintf("invalid payload: %v", err)), step)
		}
	}

	if err := ctx.Err(); err != nil {
		return models.Response{}, models.TransportError(step, err)
	}
	if t.Latency > 0 {
		timer := time.NewTimer(t.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Response{}, models.TransportError(step, ctx.Err())
		case <-timer.C:
		}
	}

	return t.Synth.Synthesize(step, p)
}
