// Package orchestrator drives sessions: it interleaves interactive chat
// turns and periodic background frame samples into a single per-session
// emotional history, keeps the risk score current, and produces the
// end-of-session report.
//
// Concurrency model: every session has its own lock and all mutations to a
// session's history and conversation go through it, so the two producers
// (user turns and background samples) serialize per session while distinct
// sessions proceed fully in parallel. Classifier and generator calls run
// outside the session lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell-dev/mindwell/internal/analyzer"
	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/fusion"
	"github.com/mindwell-dev/mindwell/internal/report"
	"github.com/mindwell-dev/mindwell/internal/responder"
	"github.com/mindwell-dev/mindwell/internal/risk"
	"github.com/mindwell-dev/mindwell/internal/tracing"
	"github.com/mindwell-dev/mindwell/pkg/observability"
	"github.com/mindwell-dev/mindwell/pkg/store"
)

// Caller-facing errors.
var (
	// ErrSessionNotFound is returned when operating on an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionEnded is returned when submitting to an ended session.
	ErrSessionEnded = errors.New("session has ended")
	// ErrInvalidInput is returned for empty text or empty payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Session states.
const (
	stateActive = "active"
	stateEnded  = "ended"
)

// TurnResult is what a user turn yields: the assistant reply plus the
// emotional state it was produced under.
type TurnResult struct {
	Reply    string        `json:"reply"`
	Strategy string        `json:"strategy"`
	Fused    emotion.Fused `json:"fused"`
	Risk     risk.Snapshot `json:"risk"`
}

// Config holds the orchestrator's tunables.
type Config struct {
	// FusionWindow is the interval within which a text turn is paired with
	// the most recent background image observation.
	FusionWindow time.Duration
	// SampleInterval is the cadence of background frame sampling. Zero
	// disables sampling.
	SampleInterval time.Duration
	// SampleTimeout bounds each background classification. Samples that
	// exceed it are dropped, not retried.
	SampleTimeout time.Duration
	// Risk configures the per-session risk tracker.
	Risk risk.Config
}

// DefaultConfig returns the standard orchestrator tunables.
func DefaultConfig() Config {
	return Config{
		FusionWindow:   20 * time.Second,
		SampleInterval: 20 * time.Second,
		SampleTimeout:  10 * time.Second,
		Risk:           risk.DefaultConfig(),
	}
}

// Orchestrator manages all active sessions.
type Orchestrator struct {
	cfg       Config
	analyzers *analyzer.Set
	fuser     *fusion.Engine
	responder *responder.Responder
	backend   store.Backend
	frames    FrameSource

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is the per-session state. All fields below mu are guarded by it.
type session struct {
	id     string
	userID string

	// cancel stops in-flight background work when the session ends.
	ctx     context.Context
	cancel  context.CancelFunc
	sampler *sampler

	mu        sync.Mutex
	state     string
	tracker   *risk.Tracker
	history   []emotion.Fused
	turns     []chat.Turn
	lastImage *emotion.Observation
	report    *report.Report
	startedAt time.Time
}

// New creates an orchestrator. frames may be nil, which disables background
// sampling.
func New(cfg Config, analyzers *analyzer.Set, resp *responder.Responder, backend store.Backend, frames FrameSource) *Orchestrator {
	if cfg.FusionWindow <= 0 {
		cfg.FusionWindow = 20 * time.Second
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = 10 * time.Second
	}
	if backend == nil {
		backend = store.NewMemoryBackend()
	}
	return &Orchestrator{
		cfg:       cfg,
		analyzers: analyzers,
		fuser:     fusion.NewEngine(),
		responder: resp,
		backend:   backend,
		frames:    frames,
		sessions:  make(map[string]*session),
	}
}

// StartSession creates a new active session and starts its background
// sampler if a frame source is configured.
func (o *Orchestrator) StartSession(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        id,
		userID:    userID,
		ctx:       sctx,
		cancel:    cancel,
		state:     stateActive,
		tracker:   risk.NewTracker(o.cfg.Risk),
		startedAt: now,
	}

	o.mu.Lock()
	o.sessions[id] = s
	active := o.countActiveLocked()
	o.mu.Unlock()
	observability.SetActiveSessions(active)

	if err := o.backend.SaveSession(ctx, &store.SessionRecord{
		ID:        id,
		UserID:    userID,
		State:     stateActive,
		StartedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Printf("orchestrator: save session %s: %v", id, err)
		observability.RecordStorageWriteFailure("save_session")
	}

	if o.frames != nil && o.cfg.SampleInterval > 0 {
		s.sampler = newSampler(o, s, o.cfg.SampleInterval)
		s.sampler.start()
	}

	return id, nil
}

// SubmitText handles one user chat turn: classify, fuse with any recent
// background image observation, update risk, reply.
func (o *Orchestrator) SubmitText(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "session.turn", map[string]any{
		"session_id": sessionID,
	})
	defer span.End()

	// Classification runs outside the session lock.
	obs := o.analyzers.Text.Classify(ctx, []byte(text))

	s.mu.Lock()
	if s.state == stateEnded {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}

	inputs := []emotion.Observation{obs}
	if s.lastImage != nil && obs.Timestamp.Sub(s.lastImage.Timestamp) <= o.cfg.FusionWindow {
		inputs = append(inputs, *s.lastImage)
	}
	fused := o.fuse(ctx, obs.Timestamp, inputs...)
	snap := o.appendFusedLocked(ctx, s, fused)

	userTurn := chat.Turn{
		Role:      chat.RoleUser,
		Text:      text,
		Emotion:   &obs,
		Timestamp: obs.Timestamp,
	}
	s.turns = append(s.turns, userTurn)
	history := make([]chat.Turn, len(s.turns))
	copy(history, s.turns)
	s.mu.Unlock()

	o.persistTurn(ctx, s, userTurn)

	// Reply generation is slow; run it outside the lock against the frozen
	// history copy.
	emoCtx := responder.EmotionalContext{Fused: fused, Risk: snap}
	reply, strategy := o.responder.Reply(ctx, history, emoCtx)
	observability.RecordTurn(strategy)
	span.SetAttribute("strategy", strategy)

	assistantTurn := chat.Turn{
		Role:      chat.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	}

	// If the session ended while the reply was being generated, the turn is
	// dropped from the conversation and must not be persisted either.
	s.mu.Lock()
	appended := s.state != stateEnded
	if appended {
		s.turns = append(s.turns, assistantTurn)
	}
	s.mu.Unlock()
	if appended {
		o.persistTurn(ctx, s, assistantTurn)
	}

	return &TurnResult{
		Reply:    reply,
		Strategy: strategy,
		Fused:    fused,
		Risk:     snap,
	}, nil
}

// SubmitImage handles one background frame: classify, fuse alone, update
// risk. It produces no conversational reply.
func (o *Orchestrator) SubmitImage(ctx context.Context, sessionID string, image []byte) (risk.Snapshot, error) {
	if len(image) == 0 {
		return risk.Snapshot{}, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	s, err := o.lookup(sessionID)
	if err != nil {
		return risk.Snapshot{}, err
	}

	obs := o.analyzers.Image.Classify(ctx, image)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateEnded {
		return risk.Snapshot{}, ErrSessionEnded
	}

	if obs.SourceOK {
		s.lastImage = &obs
	}
	fused := o.fuse(ctx, obs.Timestamp, obs)
	snap := o.appendFusedLocked(ctx, s, fused)
	return snap, nil
}

// SubmitAudio handles a voice message: transcribe-and-classify, fuse with
// any recent background image observation, update risk, reply. Behaves like
// SubmitText with the audio modality's trust weight.
func (o *Orchestrator) SubmitAudio(ctx context.Context, sessionID string, audio []byte) (*TurnResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}
	s, err := o.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	obs := o.analyzers.Audio.Classify(ctx, audio)

	s.mu.Lock()
	if s.state == stateEnded {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}

	inputs := []emotion.Observation{obs}
	if s.lastImage != nil && obs.Timestamp.Sub(s.lastImage.Timestamp) <= o.cfg.FusionWindow {
		inputs = append(inputs, *s.lastImage)
	}
	fused := o.fuse(ctx, obs.Timestamp, inputs...)
	snap := o.appendFusedLocked(ctx, s, fused)
	history := make([]chat.Turn, len(s.turns))
	copy(history, s.turns)
	s.mu.Unlock()

	emoCtx := responder.EmotionalContext{Fused: fused, Risk: snap}
	reply, strategy := o.responder.Reply(ctx, history, emoCtx)
	observability.RecordTurn(strategy)

	assistantTurn := chat.Turn{
		Role:      chat.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	appended := s.state != stateEnded
	if appended {
		s.turns = append(s.turns, assistantTurn)
	}
	s.mu.Unlock()
	if appended {
		o.persistTurn(ctx, s, assistantTurn)
	}

	return &TurnResult{
		Reply:    reply,
		Strategy: strategy,
		Fused:    fused,
		Risk:     snap,
	}, nil
}

// RiskSnapshot returns the session's current risk state without mutating it.
func (o *Orchestrator) RiskSnapshot(sessionID string) (risk.Snapshot, error) {
	s, err := o.lookup(sessionID)
	if err != nil {
		return risk.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Snapshot(time.Now()), nil
}

// EndSession terminates a session and returns its report. Ending an already
// ended session returns the identical cached report; it never recomputes.
// In-flight background sampling is cancelled without waiting for it.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (*report.Report, error) {
	s, err := o.lookupAny(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == stateEnded {
		rep := s.report
		s.mu.Unlock()
		return rep, nil
	}
	s.state = stateEnded

	now := time.Now()
	// The report covers the whole session, so it is rescored from the full
	// history rather than reusing the windowed snapshot.
	snap := s.tracker.RecomputeAll(now)
	history := make([]emotion.Fused, len(s.history))
	copy(history, s.history)
	rep := report.Build(s.id, history, snap, now)
	s.report = rep
	s.mu.Unlock()

	// Fire-and-forget cancellation of background work.
	s.cancel()
	if s.sampler != nil {
		s.sampler.stop()
	}

	o.mu.Lock()
	active := o.countActiveLocked()
	o.mu.Unlock()
	observability.SetActiveSessions(active)

	if err := o.backend.SaveReport(ctx, rep); err != nil {
		log.Printf("orchestrator: save report %s: %v", s.id, err)
		observability.RecordStorageWriteFailure("save_report")
	}
	ended := now
	if err := o.backend.SaveSession(ctx, &store.SessionRecord{
		ID:        s.id,
		UserID:    s.userID,
		State:     stateEnded,
		StartedAt: s.startedAt,
		UpdatedAt: now,
		EndedAt:   &ended,
	}); err != nil {
		log.Printf("orchestrator: save session %s: %v", s.id, err)
		observability.RecordStorageWriteFailure("save_session")
	}

	return rep, nil
}

// Close ends all active sessions.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.RLock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	for _, id := range ids {
		if _, err := o.EndSession(ctx, id); err != nil && !errors.Is(err, ErrSessionEnded) {
			log.Printf("orchestrator: end session %s: %v", id, err)
		}
	}
	return o.backend.Close()
}

// fuse runs the fusion engine under a span so traces show what the winning
// label was fused from.
func (o *Orchestrator) fuse(ctx context.Context, at time.Time, inputs ...emotion.Observation) emotion.Fused {
	_, span := tracing.StartSpan(ctx, "session.fuse", map[string]any{
		"inputs": len(inputs),
	})
	fused := o.fuser.Fuse(at, inputs...)
	span.SetAttribute("label", string(fused.Label))
	span.End()
	return fused
}

// appendFusedLocked records a fused observation in the tracker, the history
// and storage, returning the updated risk snapshot. Caller holds s.mu.
func (o *Orchestrator) appendFusedLocked(ctx context.Context, s *session, fused emotion.Fused) risk.Snapshot {
	observability.RecordFusion(len(fused.Modalities) == 0)

	// Producers stamp observations before taking the session lock, so a
	// slower producer can arrive with an older timestamp. Clamp forward to
	// keep the history and the persisted stream monotonic.
	if n := len(s.history); n > 0 && fused.Timestamp.Before(s.history[n-1].Timestamp) {
		fused.Timestamp = s.history[n-1].Timestamp
	}

	s.tracker.Observe(fused)
	s.history = append(s.history, fused)
	snap := s.tracker.Snapshot(fused.Timestamp)
	observability.ObserveRiskScore(snap.Score)

	// Storage write failure degrades persistence only, never the session.
	// A no-signal result is stored with SourceOK=false so the persisted
	// stream keeps it distinct from a genuine neutral classification.
	obs := emotion.Observation{
		Label:      fused.Label,
		Confidence: fused.Confidence,
		Timestamp:  fused.Timestamp,
	}
	if len(fused.Modalities) > 0 {
		obs.Modality = fused.Modalities[0]
		obs.SourceOK = true
	}
	if err := o.backend.AppendObservation(ctx, s.id, obs); err != nil {
		log.Printf("orchestrator: append observation %s: %v", s.id, err)
		observability.RecordStorageWriteFailure("append_observation")
	}
	return snap
}

func (o *Orchestrator) persistTurn(ctx context.Context, s *session, turn chat.Turn) {
	if err := o.backend.AppendTurn(ctx, s.id, turn); err != nil {
		log.Printf("orchestrator: append turn %s: %v", s.id, err)
		observability.RecordStorageWriteFailure("append_turn")
	}
}

// PingStorage probes the persistence backend for the health endpoint.
func (o *Orchestrator) PingStorage(ctx context.Context) error {
	if p, ok := o.backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	// Memory and file backends hold no connection; a cheap read verifies the
	// backend still accepts operations.
	_, err := o.backend.ListSessions(ctx)
	return err
}

// PingGenerator probes the reply generator for the health endpoint.
func (o *Orchestrator) PingGenerator(ctx context.Context) error {
	return o.responder.CheckAvailability(ctx)
}

// lookup returns an active session or the appropriate caller error.
func (o *Orchestrator) lookup(sessionID string) (*session, error) {
	s, err := o.lookupAny(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	ended := s.state == stateEnded
	s.mu.Unlock()
	if ended {
		return nil, ErrSessionEnded
	}
	return s, nil
}

func (o *Orchestrator) lookupAny(sessionID string) (*session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// countActiveLocked counts non-ended sessions. Caller holds o.mu.
func (o *Orchestrator) countActiveLocked() int {
	n := 0
	for _, s := range o.sessions {
		s.mu.Lock()
		if s.state == stateActive {
			n++
		}
		s.mu.Unlock()
	}
	return n
}
