// Package tracker owns the live progress state: it loads the persisted
// documents at startup, applies toggles, writes both documents back after
// every change and tells subscribers that something moved.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/storage"
)

// EventSubtopicToggled is logged for every toggle.
const EventSubtopicToggled = "subtopic_toggled"

// Config wires a Tracker to its collaborators.
type Config struct {
	Catalog *curriculum.Catalog
	Store   storage.DocumentStore
	Events  EventLogger      // optional; defaults to NopEventLogger
	Now     func() time.Time // optional; defaults to time.Now
}

// ToggleResult reports the outcome of one toggle.
type ToggleResult struct {
	Key        progress.Key  `json:"key"`
	Checked    bool          `json:"checked"`
	Date       progress.Date `json:"date"`
	TodayCount float64       `json:"today_count"`
}

// Tracker serializes all reads and writes of the progress state.
type Tracker struct {
	catalog *curriculum.Catalog
	store   storage.DocumentStore
	events  EventLogger
	now     func() time.Time

	mu    sync.Mutex
	state progress.State

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New builds a tracker and rehydrates state from the store. Missing or
// malformed documents start empty.
func New(cfg Config) (*Tracker, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if cfg.Events == nil {
		cfg.Events = NopEventLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	t := &Tracker{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		events:  cfg.Events,
		now:     cfg.Now,
		subs:    make(map[int]chan struct{}),
	}
	t.state = t.load()

	slog.Info("tracker loaded",
		"progress_keys", len(t.state.Progress),
		"activity_entries", len(t.state.Activity),
	)
	return t, nil
}

// Catalog returns the syllabus catalog the tracker weighs toggles against.
func (t *Tracker) Catalog() *curriculum.Catalog {
	return t.catalog
}

// Today is the current local calendar date.
func (t *Tracker) Today() progress.Date {
	return progress.DateOf(t.now())
}

// Toggle flips one subtopic and persists the result. Persistence failures
// are logged; the in-memory state stays authoritative.
func (t *Tracker) Toggle(ref progress.Ref) ToggleResult {
	today := t.Today()

	t.mu.Lock()
	t.state = progress.Toggle(t.catalog, t.state, ref, today)
	key := ref.Key()
	res := ToggleResult{
		Key:        key,
		Checked:    t.state.Progress[key],
		Date:       today,
		TodayCount: t.state.Activity.CountOn(today),
	}
	t.persistLocked()
	t.mu.Unlock()

	err := t.events.LogEvent(Event{
		Type: EventSubtopicToggled,
		Data: map[string]any{
			"key":         string(key),
			"checked":     res.Checked,
			"weight":      progress.Weight(t.catalog, ref.SubjectID, ref.TopicID),
			"date":        string(today),
			"today_count": res.TodayCount,
		},
		CreatedAt: t.now(),
	})
	if err != nil {
		slog.Warn("failed to log toggle event", "key", key, "error", err)
	}

	t.notify()
	return res
}

// Dashboard derives every dashboard figure from the current state.
func (t *Tracker) Dashboard() progress.Summary {
	state := t.State()
	return progress.Summarize(t.catalog.Subjects(), state, t.Today())
}

// Subject returns the checklist view of one subject.
func (t *Tracker) Subject(id string) (progress.SubjectView, bool) {
	subject, ok := t.catalog.GetSubject(id)
	if !ok {
		return progress.SubjectView{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return progress.View(subject, t.state.Progress), true
}

// State returns a deep copy of the current state.
func (t *Tracker) State() progress.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Subscribe returns a channel that receives a signal after each change.
// Signals coalesce: a slow reader sees at most one pending signal.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (t *Tracker) notify() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// load reads both documents, treating anything unreadable as absent.
func (t *Tracker) load() progress.State {
	state := progress.State{Progress: progress.Store{}, Activity: progress.Ledger{}}

	if body, ok := t.readDocument(progress.ProgressDocument); ok {
		if s, err := progress.DecodeProgress(body); err != nil {
			slog.Warn("discarding malformed progress document", "error", err)
		} else {
			state.Progress = s
		}
	}
	if body, ok := t.readDocument(progress.ActivityDocument); ok {
		if l, err := progress.DecodeActivity(body); err != nil {
			slog.Warn("discarding malformed activity log", "error", err)
		} else {
			state.Activity = l
		}
	}
	return state
}

func (t *Tracker) readDocument(key string) ([]byte, bool) {
	body, found, err := t.store.Get(key)
	if err != nil {
		slog.Warn("reading document failed; starting empty", "document", key, "error", err)
		return nil, false
	}
	return body, found
}

// persistLocked writes both documents. Caller holds t.mu.
func (t *Tracker) persistLocked() {
	progressDoc, err := progress.EncodeProgress(t.state.Progress)
	if err != nil {
		slog.Error("failed to persist progress", "error", err)
		return
	}
	activityDoc, err := progress.EncodeActivity(t.state.Activity)
	if err != nil {
		slog.Error("failed to persist progress", "error", err)
		return
	}

	err = t.store.Put(
		storage.Document{Key: progress.ProgressDocument, Body: progressDoc},
		storage.Document{Key: progress.ActivityDocument, Body: activityDoc},
	)
	if err != nil {
		slog.Error("failed to persist progress", "error", err)
	}
}
