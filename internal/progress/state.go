// Package progress holds syllabus completion state and the activity ledger,
// the toggle transition that keeps them in step, and the pure functions that
// derive coverage, streak and weekly figures from them.
package progress

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date formatted as YYYY-MM-DD.
type Date string

// DateOf returns the calendar date of t in t's own location.
// Pass time.Now() to get the local date.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// AddDays returns the date n calendar days after d (before, if n < 0).
// An unparseable date is returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// DayOfMonth returns the day component of d, or 0 if d is unparseable.
func (d Date) DayOfMonth() int {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return 0
	}
	return t.Day()
}

// Key identifies one subtopic checkbox: "{subjectID}-{topicID}-{index}".
type Key string

// Ref names a subtopic by its position in the catalog.
type Ref struct {
	SubjectID string `json:"subject_id"`
	TopicID   string `json:"topic_id"`
	Index     int    `json:"index"`
}

// Key returns the progress key for r.
func (r Ref) Key() Key {
	return MakeKey(r.SubjectID, r.TopicID, r.Index)
}

// MakeKey builds a progress key. Keys are positional: if the catalog changes
// shape, older keys are orphaned and simply never read again.
func MakeKey(subjectID, topicID string, index int) Key {
	return Key(fmt.Sprintf("%s-%s-%d", subjectID, topicID, index))
}

// Store maps progress keys to their done flag. A missing key means not done.
type Store map[Key]bool

// Clone returns an independent copy of s. Cloning nil yields an empty store.
func (s Store) Clone() Store {
	if s == nil {
		return Store{}
	}
	return maps.Clone(s)
}

// ActivityEntry records how many syllabus days were completed on a date.
type ActivityEntry struct {
	Date  Date    `json:"date"`
	Count float64 `json:"count"`
}

// Ledger is the activity log. It holds at most one entry per date; entry
// order carries no meaning.
type Ledger []ActivityEntry

// Find returns the index of the entry for d.
func (l Ledger) Find(d Date) (int, bool) {
	for i, e := range l {
		if e.Date == d {
			return i, true
		}
	}
	return -1, false
}

// CountOn returns the count recorded for d, or 0 if there is none.
func (l Ledger) CountOn(d Date) float64 {
	var total float64
	for _, e := range l {
		if e.Date == d {
			total += e.Count
		}
	}
	return total
}

// Clone returns an independent copy of l.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return Ledger{}
	}
	return slices.Clone(l)
}

// State is the complete mutable ground truth: completion flags plus the
// activity ledger. The two must always be updated together.
type State struct {
	Progress Store
	Activity Ledger
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{
		Progress: s.Progress.Clone(),
		Activity: s.Activity.Clone(),
	}
}
