package tracker_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/storage"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

func TestBackupFilename(t *testing.T) {
	got := tracker.BackupFilename(time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC))
	if got != "prep-backup-2024-03-05.json" {
		t.Errorf("BackupFilename() = %q", got)
	}
}

func TestExport_Empty(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)

	data, err := tr.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := "{\n  \"progress\": null,\n  \"activityLog\": null,\n  \"timestamp\": \"2024-01-01T10:00:00.000Z\"\n}"
	if string(data) != want {
		t.Errorf("Export() =\n%s\nwant\n%s", data, want)
	}
}

func TestExport_EmbedsRawDocuments(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore(), nil)
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})

	data, err := tr.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var b tracker.Backup
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if b.Progress == nil || *b.Progress != `{"S-T-0":true}` {
		t.Errorf("progress = %v", b.Progress)
	}
	if b.ActivityLog == nil || *b.ActivityLog != `[{"date":"2024-01-01","count":0.25}]` {
		t.Errorf("activityLog = %v", b.ActivityLog)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := storage.NewMemoryStore()
	tr := newTracker(t, src, nil)
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})
	tr.Toggle(progress.Ref{SubjectID: "R", TopicID: "U", Index: 1})

	data, err := tr.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst := storage.NewMemoryStore()
	fresh := newTracker(t, dst, nil)
	if err := fresh.Import(data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	for _, key := range []string{progress.ProgressDocument, progress.ActivityDocument} {
		want, _, _ := src.Get(key)
		got, found, _ := dst.Get(key)
		if !found || string(got) != string(want) {
			t.Errorf("%s = %s, want %s", key, got, want)
		}
	}
	if fresh.Dashboard().Coverage.CompletedDays != tr.Dashboard().Coverage.CompletedDays {
		t.Error("imported tracker should be rehydrated from the store")
	}
}

func TestImport_PartialLeavesOtherDocument(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := newTracker(t, store, nil)
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})

	tests := []struct {
		name string
		data string
	}{
		{"absent", `{"activityLog":"[{\"date\":\"2023-06-01\",\"count\":2}]"}`},
		{"null", `{"progress":null,"activityLog":"[{\"date\":\"2023-06-01\",\"count\":2}]"}`},
		{"empty", `{"progress":"","activityLog":"[{\"date\":\"2023-06-01\",\"count\":2}]"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tr.Import([]byte(tt.data)); err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			body, _, _ := store.Get(progress.ProgressDocument)
			if string(body) != `{"S-T-0":true}` {
				t.Errorf("progress = %s, want untouched", body)
			}
			body, _, _ = store.Get(progress.ActivityDocument)
			if string(body) != `[{"date":"2023-06-01","count":2}]` {
				t.Errorf("activity = %s, want imported", body)
			}
			if got := tr.State().Activity.CountOn("2023-06-01"); got != 2 {
				t.Errorf("rehydrated count = %v, want 2", got)
			}
		})
	}
}

func TestImport_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty file", ``},
		{"not json", `{progress`},
		{"array envelope", `[]`},
		{"progress not a string", `{"progress":{"S-T-0":true}}`},
		{"progress inner not json", `{"progress":"{oops","activityLog":"[]"}`},
		{"progress value not bool", `{"progress":"{\"S-T-0\":1}"}`},
		{"activity not array", `{"progress":"{}","activityLog":"{}"}`},
		{"activity bad date", `{"activityLog":"[{\"date\":\"yesterday\",\"count\":1}]"}`},
		{"activity negative count", `{"activityLog":"[{\"date\":\"2024-01-01\",\"count\":-1}]"}`},
		{"activity missing count", `{"activityLog":"[{\"date\":\"2024-01-01\"}]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			tr := newTracker(t, store, nil)
			tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})
			before, _, _ := store.Get(progress.ProgressDocument)

			err := tr.Import([]byte(tt.data))
			if !errors.Is(err, tracker.ErrInvalidBackup) {
				t.Fatalf("Import() error = %v, want ErrInvalidBackup", err)
			}

			after, _, _ := store.Get(progress.ProgressDocument)
			if string(after) != string(before) {
				t.Errorf("progress changed on rejected import: %s -> %s", before, after)
			}
			activity, _, _ := store.Get(progress.ActivityDocument)
			if string(activity) != `[{"date":"2024-01-01","count":0.25}]` {
				t.Errorf("activity changed on rejected import: %s", activity)
			}
		})
	}
}

func TestImport_WriteFailure(t *testing.T) {
	tr := newTracker(t, failingStore{}, nil)
	err := tr.Import([]byte(`{"progress":"{}"}`))
	if err == nil {
		t.Fatal("Import() should surface the write failure")
	}
	if errors.Is(err, tracker.ErrInvalidBackup) {
		t.Error("a write failure is not a malformed backup")
	}
}

func TestReset(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := newTracker(t, store, nil)
	tr.Toggle(progress.Ref{SubjectID: "S", TopicID: "T", Index: 0})
	ch, cancel := tr.Subscribe()
	defer cancel()

	if err := tr.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	for _, key := range []string{progress.ProgressDocument, progress.ActivityDocument} {
		if _, found, _ := store.Get(key); found {
			t.Errorf("%s should be deleted", key)
		}
	}
	state := tr.State()
	if len(state.Progress) != 0 || len(state.Activity) != 0 {
		t.Errorf("state after reset = %+v", state)
	}
	select {
	case <-ch:
	default:
		t.Error("reset should notify subscribers")
	}

	if err := newTracker(t, failingStore{}, nil).Reset(); err == nil {
		t.Error("Reset() should surface delete failures")
	}
}
