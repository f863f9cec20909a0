package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/storage"
)

// ErrInvalidBackup is returned by Import when the file is malformed. Nothing
// has been written when it is returned.
var ErrInvalidBackup = errors.New("invalid backup")

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Backup is the export/import envelope. Progress and ActivityLog carry the raw
// persisted documents as JSON-encoded strings.
type Backup struct {
	Progress    *string `json:"progress"`
	ActivityLog *string `json:"activityLog"`
	Timestamp   string  `json:"timestamp"`
}

const envelopeSchema = `{
  "type": "object",
  "properties": {
    "progress":    {"type": ["string", "null"]},
    "activityLog": {"type": ["string", "null"]},
    "timestamp":   {"type": ["string", "null"]}
  }
}`

const progressSchema = `{
  "type": "object",
  "additionalProperties": {"type": "boolean"}
}`

const activitySchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["date", "count"],
    "properties": {
      "date":  {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
      "count": {"type": "number", "minimum": 0}
    }
  }
}`

var (
	envelopeValidator = mustSchema(envelopeSchema)
	progressValidator = mustSchema(progressSchema)
	activityValidator = mustSchema(activitySchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// BackupFilename is the suggested download name for an export taken at t.
func BackupFilename(t time.Time) string {
	return "prep-backup-" + t.Format("2006-01-02") + ".json"
}

// Export returns the backup document built from the durable store.
// Documents that were never written export as null.
func (t *Tracker) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := Backup{Timestamp: t.now().UTC().Format(timestampLayout)}
	for _, doc := range []struct {
		key string
		dst **string
	}{
		{progress.ProgressDocument, &b.Progress},
		{progress.ActivityDocument, &b.ActivityLog},
	} {
		body, found, err := t.store.Get(doc.key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", doc.key, err)
		}
		if found {
			s := string(body)
			*doc.dst = &s
		}
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// Import overwrites the documents present in data and reloads state from the
// store. Every field is validated before anything is written; absent, null
// and empty fields leave the stored document untouched.
func (t *Tracker) Import(data []byte) error {
	docs, err := parseBackup(data)
	if err != nil {
		slog.Warn("backup import rejected", "error", err)
		return err
	}

	t.mu.Lock()
	if len(docs) > 0 {
		if err := t.store.Put(docs...); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("write backup: %w", err)
		}
	}
	t.state = t.load()
	keys, entries := len(t.state.Progress), len(t.state.Activity)
	t.mu.Unlock()

	slog.Info("backup imported", "documents", len(docs), "progress_keys", keys, "activity_entries", entries)
	t.notify()
	return nil
}

// Reset deletes both documents and clears the in-memory state.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	if err := t.store.Delete(progress.ProgressDocument, progress.ActivityDocument); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("reset: %w", err)
	}
	t.state = progress.State{Progress: progress.Store{}, Activity: progress.Ledger{}}
	t.mu.Unlock()

	slog.Info("progress reset")
	t.notify()
	return nil
}

// parseBackup validates the envelope and each embedded document and returns
// the documents to write.
func parseBackup(data []byte) ([]storage.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidBackup)
	}
	if err := validate(envelopeValidator, data, "backup"); err != nil {
		return nil, err
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	var docs []storage.Document
	if b.Progress != nil && strings.TrimSpace(*b.Progress) != "" {
		body := []byte(*b.Progress)
		if err := validate(progressValidator, body, "progress"); err != nil {
			return nil, err
		}
		docs = append(docs, storage.Document{Key: progress.ProgressDocument, Body: body})
	}
	if b.ActivityLog != nil && strings.TrimSpace(*b.ActivityLog) != "" {
		body := []byte(*b.ActivityLog)
		if err := validate(activityValidator, body, "activityLog"); err != nil {
			return nil, err
		}
		docs = append(docs, storage.Document{Key: progress.ActivityDocument, Body: body})
	}
	return docs, nil
}

func validate(schema *gojsonschema.Schema, doc []byte, field string) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", ErrInvalidBackup, field, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidBackup, field, strings.Join(msgs, "; "))
	}
	return nil
}
