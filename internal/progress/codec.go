package progress

import (
	"encoding/json"
	"fmt"
)

// Names of the two persisted documents.
const (
	ProgressDocument = "progress"
	ActivityDocument = "activity_log"
)

// EncodeProgress serializes the store as a JSON object of key -> bool.
func EncodeProgress(s Store) ([]byte, error) {
	if s == nil {
		s = Store{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	return data, nil
}

// DecodeProgress parses a progress document. JSON null yields an empty store.
func DecodeProgress(data []byte) (Store, error) {
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if s == nil {
		s = Store{}
	}
	return s, nil
}

// EncodeActivity serializes the ledger as a JSON array of {date, count}.
func EncodeActivity(l Ledger) ([]byte, error) {
	if l == nil {
		l = Ledger{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode activity log: %w", err)
	}
	return data, nil
}

// DecodeActivity parses an activity-log document. JSON null yields an empty ledger.
func DecodeActivity(data []byte) (Ledger, error) {
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode activity log: %w", err)
	}
	if l == nil {
		l = Ledger{}
	}
	return l, nil
}
