package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/blockpulse-dev/blockpulse/channel"
	"github.com/blockpulse-dev/blockpulse/pkg/observability"
	"github.com/blockpulse-dev/blockpulse/pkg/store"
)

// persistTimeout bounds every snapshot write so a slow store cannot stall
// the caller's event handler.
const persistTimeout = 5 * time.Second

// Interaction is the caller-supplied description of a discrete user action.
type Interaction struct {
	Kind        InteractionKind
	ElementID   string
	ElementType string
	DurationMs  int64
	Data        map[string]any
}

// Answer is the caller-supplied description of an answered question.
// Nil Score/MaxScore mean the question is unscored.
type Answer struct {
	QuestionID    string
	QuestionType  string
	Answer        any
	CorrectAnswer any
	IsCorrect     bool
	Score         *float64
	MaxScore      *float64
	Attempt       int
	HintsUsed     int
}

// ListenerHandle identifies a registered callback sink for removal.
type ListenerHandle int

// Tracker owns one block's session. All methods are safe for concurrent use
// and never return an error: failures degrade to a logged warning.
type Tracker struct {
	cfg   Config
	bus   channel.Bus
	store store.Store

	mu    sync.Mutex
	state *SessionState

	listeners map[ListenerHandle]channel.Handler
	nextID    ListenerHandle

	limiter  *rate.Limiter
	progress *cron.Cron
	stopOnce sync.Once
}

// New constructs a tracker for one block load.
//
// With persistence enabled it restores a previously persisted session for the
// same block ID, falling back to a fresh session when nothing usable is
// stored. A started session event is emitted immediately, and the recurring
// progress-persistence job is scheduled when configured.
func New(ctx context.Context, cfg Config, bus channel.Bus, st store.Store) *Tracker {
	cfg.normalize()

	t := &Tracker{
		cfg:       cfg,
		bus:       bus,
		store:     st,
		listeners: make(map[ListenerHandle]channel.Handler),
	}

	if cfg.PersistDebounce > 0 {
		t.limiter = rate.NewLimiter(rate.Every(cfg.PersistDebounce), 1)
	}

	t.state = t.restore(ctx)
	if t.state == nil {
		t.state = &SessionState{
			SessionID:    newSessionID(),
			BlockID:      cfg.BlockID,
			StartTime:    time.Now(),
			Interactions: make([]InteractionEvent, 0),
			Questions:    make([]QuestionEvent, 0),
			Slides:       make([]SlideViewEvent, 0),
			Status:       StatusActive,
		}
	}

	if t.state.Status == StatusActive {
		observability.RecordSessionStarted()
	}

	t.mu.Lock()
	msgs, snapshot := t.sessionEventLocked(SessionStarted, nil, nil, nil, false)
	t.mu.Unlock()
	t.deliver(msgs, snapshot)

	if cfg.ProgressInterval > 0 && !t.state.Status.Terminal() {
		t.progress = cron.New()
		_, err := t.progress.AddFunc(fmt.Sprintf("@every %s", cfg.ProgressInterval), t.persistProgress)
		if err != nil {
			log.Printf("Warning: failed to schedule progress persistence for block %s: %v", cfg.BlockID, err)
			t.progress = nil
		} else {
			t.progress.Start()
		}
	}

	return t
}

// newSessionID generates a session identifier that is unique and roughly
// time-ordered.
func newSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// restore loads a persisted session for this block, or nil when none usable.
func (t *Tracker) restore(ctx context.Context) *SessionState {
	if !t.cfg.PersistSession || t.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	data, err := t.store.Load(ctx, t.cfg.StorageKey)
	if err != nil {
		if err != store.ErrStateNotFound {
			log.Printf("Warning: failed to restore session for block %s: %v", t.cfg.BlockID, err)
		}
		return nil
	}

	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("Warning: discarding corrupt session snapshot for block %s: %v", t.cfg.BlockID, err)
		return nil
	}
	// A snapshot written for another block must not leak into this one.
	if s.BlockID != t.cfg.BlockID {
		return nil
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return &s
}

// TrackInteraction records a discrete user action.
// No-op when interaction tracking is disabled or the session is terminal.
func (t *Tracker) TrackInteraction(in Interaction) {
	t.mu.Lock()
	if !t.cfg.TrackInteractions || t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	ev := InteractionEvent{
		SessionID:   t.state.SessionID,
		Kind:        in.Kind,
		ElementID:   in.ElementID,
		ElementType: in.ElementType,
		DurationMs:  in.DurationMs,
		Data:        in.Data,
		Timestamp:   time.Now(),
	}
	t.state.Interactions = append(t.state.Interactions, ev)
	t.state.TotalInteractions++

	var msgs []*channel.Message
	if t.cfg.SendDetailedEvents {
		msgs = append(msgs, channel.NewMessage(MsgBlockInteraction, ev))
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(msgs, snapshot)
}

// StartQuestion opens the question timer for the given question.
// Starting a new question overwrites a still-open one without closing it;
// the earlier question then answers without timing.
func (t *Tracker) StartQuestion(questionID, questionType, questionText string) {
	t.mu.Lock()
	if !t.cfg.TrackQuestions || t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	t.state.CurrentQuestionID = questionID
	t.state.CurrentQuestionStart = now

	ev := QuestionEvent{
		SessionID:    t.state.SessionID,
		EventType:    QuestionStarted,
		QuestionID:   questionID,
		QuestionType: questionType,
		QuestionText: questionText,
		Timestamp:    now,
	}
	t.state.Questions = append(t.state.Questions, ev)

	var msgs []*channel.Message
	if t.cfg.SendDetailedEvents {
		msgs = append(msgs, channel.NewMessage(MsgBlockQuestion, ev))
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(msgs, snapshot)
}

// AnswerQuestion records an answered question. TimeToAnswer is derived only
// when the answered ID matches the open question; the open-question pointer
// is cleared unconditionally.
func (t *Tracker) AnswerQuestion(a Answer) {
	t.mu.Lock()
	if !t.cfg.TrackQuestions || t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	now := time.Now()

	var timeToAnswer *int64
	if t.state.CurrentQuestionID == a.QuestionID && !t.state.CurrentQuestionStart.IsZero() {
		ms := now.Sub(t.state.CurrentQuestionStart).Milliseconds()
		timeToAnswer = &ms
	}

	isCorrect := a.IsCorrect
	ev := QuestionEvent{
		SessionID:      t.state.SessionID,
		EventType:      QuestionAnswered,
		QuestionID:     a.QuestionID,
		QuestionType:   a.QuestionType,
		TimeToAnswerMs: timeToAnswer,
		Answer:         a.Answer,
		CorrectAnswer:  a.CorrectAnswer,
		IsCorrect:      &isCorrect,
		Score:          a.Score,
		MaxScore:       a.MaxScore,
		Attempt:        a.Attempt,
		HintsUsed:      a.HintsUsed,
		Timestamp:      now,
	}
	t.state.Questions = append(t.state.Questions, ev)
	t.state.TotalQuestions++
	if a.IsCorrect {
		t.state.CorrectQuestions++
	}
	t.state.CurrentQuestionID = ""
	t.state.CurrentQuestionStart = time.Time{}

	var msgs []*channel.Message
	if t.cfg.SendDetailedEvents {
		msgs = append(msgs, channel.NewMessage(MsgBlockQuestion, ev))
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(msgs, snapshot)
}

// SkipQuestion records a skipped question. Counters and the open-question
// pointer are untouched.
func (t *Tracker) SkipQuestion(questionID, questionType string) {
	t.appendQuestionEvent(questionID, questionType, QuestionSkipped)
}

// ReviewQuestion records that a previously answered question was revisited.
func (t *Tracker) ReviewQuestion(questionID, questionType string) {
	t.appendQuestionEvent(questionID, questionType, QuestionReviewed)
}

func (t *Tracker) appendQuestionEvent(questionID, questionType string, et QuestionEventType) {
	t.mu.Lock()
	if !t.cfg.TrackQuestions || t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	ev := QuestionEvent{
		SessionID:    t.state.SessionID,
		EventType:    et,
		QuestionID:   questionID,
		QuestionType: questionType,
		Timestamp:    time.Now(),
	}
	t.state.Questions = append(t.state.Questions, ev)

	var msgs []*channel.Message
	if t.cfg.SendDetailedEvents {
		msgs = append(msgs, channel.NewMessage(MsgBlockQuestion, ev))
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(msgs, snapshot)
}

// Complete marks the session completed and emits the completed session event,
// plus the legacy completion event when configured. Idempotent: a second call
// after either terminal transition is a no-op. Persisted storage is cleared
// so the next load starts a fresh session.
func (t *Tracker) Complete(score, maxScore *float64, data map[string]any) {
	t.mu.Lock()
	if t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state.Status = StatusCompleted

	msgs, _ := t.sessionEventLocked(SessionCompleted, score, maxScore, data, t.cfg.SendSummary)

	if t.cfg.SendLegacyCompletion {
		timeSpent := time.Since(t.state.StartTime).Milliseconds()
		msgs = append(msgs, channel.NewMessage(MsgBlockCompletion, CompletionEvent{
			Completed:   true,
			Score:       score,
			MaxScore:    maxScore,
			TimeSpentMs: timeSpent,
			Data:        data,
		}))
	}
	t.mu.Unlock()

	t.stopProgress()
	observability.RecordSessionFinished(t.cfg.BlockID, string(StatusCompleted))
	t.deliver(msgs, nil)
	t.clearStorage()
}

// Abandon marks the session abandoned, typically on page unload. Idempotent
// against both terminal states. The persisted snapshot is left in place: an
// abandoned session was never finished, so a reload may resume it.
func (t *Tracker) Abandon() {
	t.mu.Lock()
	if t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state.Status = StatusAbandoned

	msgs, _ := t.sessionEventLocked(SessionAbandoned, nil, nil, nil, false)
	t.mu.Unlock()

	t.stopProgress()
	observability.RecordSessionFinished(t.cfg.BlockID, string(StatusAbandoned))
	t.deliver(msgs, nil)
}

// AttachLifecycle abandons the session when ctx is cancelled, unless it has
// already completed. This is how a host ties session end to its own teardown.
func (t *Tracker) AttachLifecycle(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.Abandon()
	}()
}

// AddListener registers a callback sink invoked synchronously on every
// emitted event, independent of the bus. The returned handle removes it.
func (t *Tracker) AddListener(h channel.Handler) ListenerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners[id] = h
	return id
}

// RemoveListener unregisters a callback sink. Unknown handles are ignored.
func (t *Tracker) RemoveListener(id ListenerHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, id)
}

// State returns a copy of the current session state.
func (t *Tracker) State() SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *cloneState(t.state)
}

// SessionID returns the session identifier, stable across restores.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.SessionID
}

// sessionEventLocked builds the BLOCK_SESSION message for a lifecycle
// transition. The summary is computed fresh from the event sequences; the
// full state detail is attached only when requested. Caller must hold t.mu.
func (t *Tracker) sessionEventLocked(et SessionEventType, score, maxScore *float64, data map[string]any, withDetail bool) ([]*channel.Message, []byte) {
	timeSpent := time.Since(t.state.StartTime).Milliseconds()

	ev := SessionEvent{
		EventType:   et,
		SessionID:   t.state.SessionID,
		BlockID:     t.state.BlockID,
		SlideID:     t.cfg.SlideID,
		CourseID:    t.cfg.CourseID,
		Score:       score,
		MaxScore:    maxScore,
		TimeSpentMs: timeSpent,
		Summary:     summarize(t.state, timeSpent),
		Data:        data,
	}
	if withDetail {
		ev.Detail = cloneState(t.state)
	}

	msgs := []*channel.Message{channel.NewMessage(MsgBlockSession, ev)}

	var snapshot []byte
	if et == SessionStarted {
		snapshot = t.snapshotLocked()
	}
	return msgs, snapshot
}

// snapshotLocked serializes state for persistence, honoring the debounce
// window. Returns nil when persistence is disabled or throttled.
// Caller must hold t.mu.
func (t *Tracker) snapshotLocked() []byte {
	if !t.cfg.PersistSession || t.store == nil {
		return nil
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return nil
	}

	data, err := json.Marshal(t.state)
	if err != nil {
		log.Printf("Warning: failed to serialize session for block %s: %v", t.cfg.BlockID, err)
		observability.RecordPersistFailure(t.cfg.BlockID)
		return nil
	}
	return data
}

// deliver sends messages to the bus and to listener sinks, then writes the
// snapshot. Runs without the lock so a sink may re-enter the tracker.
func (t *Tracker) deliver(msgs []*channel.Message, snapshot []byte) {
	t.mu.Lock()
	sinks := make([]channel.Handler, 0, len(t.listeners))
	for _, h := range t.listeners {
		sinks = append(sinks, h)
	}
	t.mu.Unlock()

	for _, msg := range msgs {
		observability.RecordBlockEvent(t.cfg.BlockID, msg.Type)

		if t.bus != nil {
			if err := t.bus.Broadcast(msg); err != nil {
				log.Printf("Warning: failed to deliver %s for block %s: %v", msg.Type, t.cfg.BlockID, err)
				observability.RecordSendFailure(t.cfg.BlockID)
			}
		}
		for _, h := range sinks {
			t.invokeSink(h, msg)
		}
	}

	if snapshot != nil {
		t.writeSnapshot(snapshot)
	}
}

// invokeSink runs one listener with panic isolation so a faulty sink cannot
// suppress delivery to the others.
func (t *Tracker) invokeSink(h channel.Handler, msg *channel.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: listener for block %s panicked handling %s: %v", t.cfg.BlockID, msg.Type, r)
			observability.RecordListenerPanic(t.cfg.BlockID)
		}
	}()
	h(msg)
}

func (t *Tracker) writeSnapshot(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := t.store.Save(ctx, t.cfg.StorageKey, data); err != nil {
		log.Printf("Warning: failed to persist session for block %s: %v", t.cfg.BlockID, err)
		observability.RecordPersistFailure(t.cfg.BlockID)
	}
}

// persistProgress re-persists the current state without emitting events.
// Runs on the recurring job; bypasses the debounce window.
func (t *Tracker) persistProgress() {
	t.mu.Lock()
	if !t.cfg.PersistSession || t.store == nil || t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	data, err := json.Marshal(t.state)
	t.mu.Unlock()

	if err != nil {
		log.Printf("Warning: failed to serialize session for block %s: %v", t.cfg.BlockID, err)
		observability.RecordPersistFailure(t.cfg.BlockID)
		return
	}
	t.writeSnapshot(data)
}

// stopProgress cancels the recurring persistence job exactly once.
func (t *Tracker) stopProgress() {
	t.stopOnce.Do(func() {
		if t.progress != nil {
			t.progress.Stop()
		}
	})
}

func (t *Tracker) clearStorage() {
	if !t.cfg.PersistSession || t.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := t.store.Delete(ctx, t.cfg.StorageKey); err != nil {
		log.Printf("Warning: failed to clear session storage for block %s: %v", t.cfg.BlockID, err)
	}
}

// cloneState deep-copies session state so snapshots handed outward cannot
// alias the tracker's internal slices.
func cloneState(s *SessionState) *SessionState {
	c := *s
	c.Interactions = make([]InteractionEvent, len(s.Interactions))
	copy(c.Interactions, s.Interactions)
	c.Questions = make([]QuestionEvent, len(s.Questions))
	copy(c.Questions, s.Questions)
	c.Slides = make([]SlideViewEvent, len(s.Slides))
	copy(c.Slides, s.Slides)
	return &c
}
