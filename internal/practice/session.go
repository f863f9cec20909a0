// Package practice runs timed multiple-choice practice tests: a session state
// machine (running -> submitted), a once-per-second countdown runner, scoring
// and the time's-up notification fired when the clock runs out.
package practice

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
)

var (
	ErrNoQuestions        = errors.New("test paper has no questions")
	ErrNotRunning         = errors.New("practice session is not running")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")
)

// MarksPerQuestion is awarded for each correct answer.
const MarksPerQuestion = 2

// Status is the session lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSubmitted Status = "submitted"
)

// Session is one attempt at a test paper. It is safe for concurrent use so a
// Runner can tick it while answers come in.
type Session struct {
	mu sync.Mutex

	paper       curriculum.TestPaper
	status      Status
	current     int
	answers     map[int]int  // question id -> option index
	review      map[int]bool // question id -> marked
	timeLeft    int          // seconds
	startedAt   time.Time
	submittedAt time.Time
	timedOut    bool
}

// Start opens a running session on paper with duration×60 seconds on the clock.
func Start(paper curriculum.TestPaper, now time.Time) (*Session, error) {
	if len(paper.Questions) == 0 {
		return nil, fmt.Errorf("start %s: %w", paper.ID, ErrNoQuestions)
	}
	return &Session{
		paper:     paper,
		status:    StatusRunning,
		answers:   make(map[int]int),
		review:    make(map[int]bool),
		timeLeft:  paper.Duration * 60,
		startedAt: now,
	}, nil
}

// Answer records option for the current question, replacing any earlier choice.
func (s *Session) Answer(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return ErrNotRunning
	}
	q := s.paper.Questions[s.current]
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("question %d option %d: %w", q.ID, option, ErrOptionOutOfRange)
	}
	s.answers[q.ID] = option
	return nil
}

// Next moves to the following question, staying put on the last one.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return ErrNotRunning
	}
	s.current = min(s.current+1, len(s.paper.Questions)-1)
	return nil
}

// Prev moves to the preceding question, staying put on the first one.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return ErrNotRunning
	}
	s.current = max(s.current-1, 0)
	return nil
}

// Goto jumps to question i (zero-based).
func (s *Session) Goto(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return ErrNotRunning
	}
	if i < 0 || i >= len(s.paper.Questions) {
		return fmt.Errorf("goto %d: %w", i, ErrQuestionOutOfRange)
	}
	s.current = i
	return nil
}

// ToggleReview marks or unmarks the current question for review.
func (s *Session) ToggleReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return ErrNotRunning
	}
	id := s.paper.Questions[s.current].ID
	if s.review[id] {
		delete(s.review, id)
	} else {
		s.review[id] = true
	}
	return nil
}

// Submit ends the session by hand.
func (s *Session) Submit(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return ErrNotRunning
	}
	s.status = StatusSubmitted
	s.submittedAt = now
	return nil
}

// Tick advances the clock by one second. When the last second runs out the
// session submits itself and Tick returns true; every other call returns false.
func (s *Session) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return false
	}
	if s.timeLeft <= 1 {
		s.timeLeft = 0
		s.status = StatusSubmitted
		s.submittedAt = now
		s.timedOut = true
		return true
	}
	s.timeLeft--
	return false
}

// Snapshot is a read-only view of a session for display.
type Snapshot struct {
	PaperID       string       `json:"paper_id"`
	Title         string       `json:"title"`
	Status        Status       `json:"status"`
	Current       int          `json:"current"`
	Question      QuestionView `json:"question"`
	Total         int          `json:"total"`
	Answered      int          `json:"answered"`
	Marked        []int        `json:"marked"`
	TimeLeft      int          `json:"time_left"`
	TimeLeftLabel string       `json:"time_left_label"`
	LowTime       bool         `json:"low_time"`
}

// QuestionView is the current question without its answer key.
type QuestionView struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Selected *int     `json:"selected"`
}

// Snapshot returns the current display state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.paper.Questions[s.current]
	qv := QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
	if opt, ok := s.answers[q.ID]; ok {
		qv.Selected = &opt
	}

	marked := make([]int, 0, len(s.review))
	for _, qq := range s.paper.Questions {
		if s.review[qq.ID] {
			marked = append(marked, qq.ID)
		}
	}

	return Snapshot{
		PaperID:       s.paper.ID,
		Title:         s.paper.Title,
		Status:        s.status,
		Current:       s.current,
		Question:      qv,
		Total:         len(s.paper.Questions),
		Answered:      len(s.answers),
		Marked:        marked,
		TimeLeft:      s.timeLeft,
		TimeLeftLabel: FormatTime(s.timeLeft),
		LowTime:       s.timeLeft < 60,
	}
}

// Status reports the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TimeLeft is the remaining time in seconds.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeLeft
}

// Result scores the session as answered so far.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Score(s.paper, s.answers)
	for i := range r.Questions {
		r.Questions[i].Marked = s.review[r.Questions[i].QuestionID]
	}
	r.TimedOut = s.timedOut
	if !s.submittedAt.IsZero() {
		r.Elapsed = s.submittedAt.Sub(s.startedAt)
	}
	return r
}

// Result is the scored outcome of a paper.
type Result struct {
	PaperID   string           `json:"paper_id"`
	Correct   int              `json:"correct"`
	Total     int              `json:"total"`
	Score     int              `json:"score"`
	MaxScore  int              `json:"max_score"`
	Accuracy  int              `json:"accuracy"`
	TimedOut  bool             `json:"timed_out"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
	Questions []QuestionReview `json:"questions"`
}

// QuestionReview is the per-question breakdown shown after submission.
type QuestionReview struct {
	QuestionID  int    `json:"question_id"`
	Text        string `json:"text"`
	Chosen      *int   `json:"chosen"`
	Correct     int    `json:"correct"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
	Marked      bool   `json:"marked"`
}

// Score marks answers (question id -> option index) against paper.
func Score(paper curriculum.TestPaper, answers map[int]int) Result {
	r := Result{
		PaperID:   paper.ID,
		Total:     len(paper.Questions),
		MaxScore:  len(paper.Questions) * MarksPerQuestion,
		Questions: make([]QuestionReview, 0, len(paper.Questions)),
	}

	for _, q := range paper.Questions {
		rev := QuestionReview{
			QuestionID:  q.ID,
			Text:        q.Text,
			Correct:     q.CorrectAnswer,
			Explanation: q.Explanation,
		}
		if opt, ok := answers[q.ID]; ok {
			rev.Chosen = &opt
			if opt == q.CorrectAnswer {
				rev.IsCorrect = true
				r.Correct++
				r.Score += MarksPerQuestion
			}
		}
		r.Questions = append(r.Questions, rev)
	}

	if r.Total > 0 {
		r.Accuracy = int(math.Round(float64(r.Correct) / float64(r.Total) * 100))
	}
	return r
}

// FormatTime renders seconds as h:mm:ss from one hour up and mm:ss below.
func FormatTime(seconds int) string {
	seconds = max(seconds, 0)
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
