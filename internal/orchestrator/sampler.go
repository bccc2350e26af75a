package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mindwell-dev/mindwell/pkg/observability"
)

// FrameSource supplies the periodic image frames for background sampling,
// typically a camera capture endpoint.
type FrameSource interface {
	// Capture returns one image frame.
	Capture(ctx context.Context) ([]byte, error)
}

// FrameFunc adapts a function to the FrameSource interface.
type FrameFunc func(ctx context.Context) ([]byte, error)

func (f FrameFunc) Capture(ctx context.Context) ([]byte, error) { return f(ctx) }

// sampler runs the recurring background sample for one session. Each
// session gets its own schedule; there is no shared global timer.
type sampler struct {
	orch    *Orchestrator
	session *session
	cron    *cron.Cron
}

func newSampler(o *Orchestrator, s *session, interval time.Duration) *sampler {
	sm := &sampler{
		orch:    o,
		session: s,
		cron:    cron.New(),
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := sm.cron.AddFunc(spec, sm.sample); err != nil {
		// "@every <duration>" with a positive interval always parses.
		log.Printf("sampler: schedule %q: %v", spec, err)
	}
	return sm
}

func (sm *sampler) start() { sm.cron.Start() }

// stop halts the schedule without waiting for a running sample; the
// session context cancellation aborts any in-flight classification.
func (sm *sampler) stop() { sm.cron.Stop() }

// sample captures and submits one frame. A sample that cannot complete
// within the timeout is dropped, never retried: the next tick supersedes it.
func (sm *sampler) sample() {
	ctx, cancel := context.WithTimeout(sm.session.ctx, sm.orch.cfg.SampleTimeout)
	defer cancel()

	frame, err := sm.orch.frames.Capture(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			observability.RecordSample("dropped")
			return
		}
		observability.RecordSample("failed")
		log.Printf("sampler: capture frame for session %s: %v", sm.session.id, err)
		return
	}

	if _, err := sm.orch.SubmitImage(ctx, sm.session.id, frame); err != nil {
		if errors.Is(err, ErrSessionEnded) || errors.Is(err, context.Canceled) {
			observability.RecordSample("dropped")
			return
		}
		observability.RecordSample("failed")
		log.Printf("sampler: submit frame for session %s: %v", sm.session.id, err)
		return
	}
	observability.RecordSample("ok")
}
