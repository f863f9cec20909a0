package tracker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/storage"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

var jan1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func testCatalog() *curriculum.Catalog {
	return curriculum.NewCatalog(
		curriculum.Subject{ID: "S", Name: "Subject S", Topics: []curriculum.DayTopic{
			{ID: "T", Title: "Topic T", Subtopics: []string{"a", "b", "c", "d"}},
		}},
		curriculum.Subject{ID: "R", Name: "Subject R", Topics: []curriculum.DayTopic{
			{ID: "U", Title: "Topic U", Subtopics: []string{"x", "y"}},
		}},
	)
}

func newTracker(t *testing.T, store storage.DocumentStore, events tracker.EventLogger) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.New(tracker.Config{
		Catalog: testCatalog(),
		Store:   store,
		Events:  events,
		Now:     func() time.Time { return jan1 },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

// failingStore reads as empty and refuses every write.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (failingStore) Put(...storage.Document) error    { return errors.New("quota exceeded") }
func (failingStore) Delete(...string) error           { return errors.New("quota exceeded") }

// brokenStore fails reads too.
type brokenStore struct{ failingStore }

func (brokenStore) Get(string) ([]byte, bool, error) { return nil, false, errors.New("unavailable") }

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := tracker.New(tracker.Config{Store: storage.NewMemoryStore()}); err == nil {
		t.Error("New() without catalog should fail")
	}
	if _, err := tracker.New(tracker.Config{Catalog: testCatalog()}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestToggle_ConcreteScenario(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := newTracker(t, store, nil)

	ref := func(i int) progress.Ref { return progress.Ref{SubjectID: "S", TopicID: "T", Index: i} }

	res := tr.Toggle(ref(0))
	if !res.Checked || res.Key != "S-T-0" || res.Date != "2024-01-01" || res.TodayCount != 0.25 {
		t.Fatalf("first toggle = %+v", res)
	}
	if res := tr.Toggle(ref(1)); res.TodayCount != 0.5 {
		t.Fatalf("second toggle count = %v, want 0.5", res.TodayCount)
	}
	res = tr.Toggle(ref(0))
	if res.Checked || res.TodayCount != 0.25 {
		t.Fatalf("uncheck = %+v, want unchecked with 0.25", res)
	}

	body, found, err := store.Get(progress.ProgressDocument)
	if err != nil || !found {
		t.Fatalf("progress document not persisted: found=%v err=%v", found, err)
	}
	if string(body) != `{"S-T-0":false,"S-T-1":true}` {
		t.Errorf("progress document = %s", body)
	}
	body, _, _ = store.Get(progress.ActivityDocument)
	if string(body) != `[{"date":"2024-01-01","count":0.25}]` {
		t.Errorf("activity document = %s", body)
	}

	dash := tr.Dashboard()
	if dash.Today != "2024-01-01" {
		t.Errorf("Today = %q", dash.Today)
	}
	s := dash.Coverage.Subjects[0]
	if s.SubjectID != "S" || s.CompletedDays != 0.25 || s.TotalDays != 1 || s.Percent != 25 {
		t.Errorf("subject S coverage = %+v", s)
	}
	if dash.Streak != 1 {
		t.Errorf("Streak = %d, want 1", dash.Streak)
	}
}

func TestNew_RehydratesAndRecovers(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put(
		storage.Document{Key: progress.ProgressDocument, Body: []byte(`{not json`)},
		storage.Document{Key: progress.ActivityDocument, Body: []byte(`[{"date":"2023-12-31","count":1}]`)},
	)

	tr := newTracker(t, store, nil)
	state := tr.State()
	if len(state.Progress) != 0 {
		t.Errorf("malformed progress should load empty, got %v", state.Progress)
	}
	if len(state.Activity) != 1 || state.Activity[0].Date != "2023-12-31" {
		t.Errorf("activity = %v, want the stored entry", state.Activity)
	}
	// Yesterday carry keeps the streak alive.
	if got := tr.Dashboard().Streak; got != 1 {
		t.Errorf("Streak = %d, want 1", got)
	}
}

func TestNew_UnreadableStoreStartsEmpty(t *testing.T) {
	tr := newTracker(t, brokenStore{}, nil)
	state := tr.State()
	if len(state.Progress) != 0 || len(state.Activity) != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
}

func TestToggle_PersistFailureKeepsMemoryState(t *testing.T) {
	tr := newTracker(t, failingStore{}, nil)

	res := tr.Toggle(progress.Ref{SubjectID: "R", TopicID: "U", Index: 1})
	if !res.Checked || res.TodayCount != 0.5 {
		t.Fatalf("toggle = %+v", res)
	}
	if !tr.State().Progress["R-U-1"] {
		t.Error("in-memory state should keep the toggle after a failed write")
	}
}

func TestToggle_UnknownTopicWeighsOne(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)
	res := tr.Toggle(progress.Ref{SubjectID: "nope", TopicID: "gone", Index: 0})
	if res.TodayCount != 1 {
		t.Errorf("TodayCount = %v, want 1", res.TodayCount)
	}
}

func TestToggle_LogsEvent(t *testing.T) {
	events := tracker.NewMemoryEventLogger()
	tr := newTracker(t, storage.NewMemoryStore(), events)

	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 2})

	got := events.Events()
	if len(got) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(got))
	}
	e := got[0]
	if e.Type != tracker.EventSubtopicToggled {
		t.Errorf("Type = %q", e.Type)
	}
	if e.Data["key"] != "S-T-2" || e.Data["checked"] != true || e.Data["weight"] != 0.25 {
		t.Errorf("Data = %v", e.Data)
	}
	if !e.CreatedAt.Equal(jan1) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, jan1)
	}
}

func TestSubject(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)
	tr.Toggle(progress.Ref{SubjectID: "R", TopicID: "U", Index: 0})

	view, ok := tr.Subject("R")
	if !ok {
		t.Fatal("Subject(R) not found")
	}
	if len(view.Topics) != 1 || view.Topics[0].Checked != 1 || !view.Topics[0].Subtopics[0].Checked {
		t.Errorf("view = %+v", view)
	}
	if _, ok := tr.Subject("missing"); ok {
		t.Error("Subject(missing) should not be found")
	}
}

func TestState_IsACopy(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})

	snap := tr.State()
	snap.Progress["S-T-0"] = false
	snap.Activity[0].Count = 99

	again := tr.State()
	if !again.Progress["S-T-0"] || again.Activity[0].Count != 0.25 {
		t.Errorf("mutating a snapshot leaked into the tracker: %+v", again)
	}
}

func TestSubscribe_Coalesces(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)
	ch, cancel := tr.Subscribe()

	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 1})

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce into one")
	default:
	}

	cancel()
	cancel()
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 2})
	select {
	case <-ch:
		t.Fatal("cancelled subscription should not be signalled")
	default:
	}
}
