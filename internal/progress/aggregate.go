package progress

import (
	"math"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
)

const (
	// ActivityThreshold is the count a date must exceed to read as active.
	// It absorbs float residue left by repeated partial unchecks.
	ActivityThreshold = 0.01

	// StreakScanLimit bounds how many days CurrentStreak walks back.
	StreakScanLimit = 365

	// WeeklyGoal is the number of syllabus days targeted per week.
	WeeklyGoal = 7.0

	weekWindow     = 7
	calendarWindow = 30
)

// HasActivity reports whether the ledger shows real study on d.
func HasActivity(l Ledger, d Date) bool {
	for _, e := range l {
		if e.Date == d && e.Count > ActivityThreshold {
			return true
		}
	}
	return false
}

// CurrentStreak counts consecutive active days ending today. If today is
// still empty but yesterday was active, the count ends at yesterday so an
// ongoing streak is not zeroed before the user has studied today.
func CurrentStreak(l Ledger, today Date) int {
	active := make(map[Date]bool, len(l))
	for _, e := range l {
		if e.Count > ActivityThreshold {
			active[e.Date] = true
		}
	}

	start := today
	if yesterday := today.AddDays(-1); !active[today] && active[yesterday] {
		start = yesterday
	}

	streak := 0
	for d := start; streak < StreakScanLimit && active[d]; d = d.AddDays(-1) {
		streak++
	}
	return streak
}

// DayPoint is one day of a chart series.
type DayPoint struct {
	Date  Date    `json:"date"`
	Count float64 `json:"count"`
}

// WeeklyProgress compares the last seven days of activity with WeeklyGoal.
type WeeklyProgress struct {
	Total   float64    `json:"total"`
	Goal    float64    `json:"goal"`
	Percent int        `json:"percent"`
	Series  []DayPoint `json:"series"` // oldest first, counts rounded to one decimal
}

// Weekly sums the ledger over the seven dates ending today, inclusive.
func Weekly(l Ledger, today Date) WeeklyProgress {
	series := make([]DayPoint, 0, weekWindow)
	var total float64
	for i := weekWindow - 1; i >= 0; i-- {
		d := today.AddDays(-i)
		count := l.CountOn(d)
		total += count
		series = append(series, DayPoint{Date: d, Count: math.Round(count*10) / 10})
	}

	return WeeklyProgress{
		Total:   total,
		Goal:    WeeklyGoal,
		Percent: min(100, percent(total, WeeklyGoal)),
		Series:  series,
	}
}

// CalendarDay is one cell of the 30-day activity calendar.
type CalendarDay struct {
	Date       Date `json:"date"`
	Active     bool `json:"active"`
	DayOfMonth int  `json:"day_of_month"`
}

// Calendar returns exactly 30 days ending today, oldest first.
func Calendar(l Ledger, today Date) []CalendarDay {
	days := make([]CalendarDay, 0, calendarWindow)
	for i := calendarWindow - 1; i >= 0; i-- {
		d := today.AddDays(-i)
		days = append(days, CalendarDay{
			Date:       d,
			Active:     HasActivity(l, d),
			DayOfMonth: d.DayOfMonth(),
		})
	}
	return days
}

// TopicCoverage is the completion of one syllabus day.
type TopicCoverage struct {
	TopicID  string  `json:"topic_id"`
	Title    string  `json:"title"`
	Checked  int     `json:"checked"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

// SubjectCoverage measures a subject in syllabus days: each topic adds its
// completed fraction, and each topic counts as one day of the total.
type SubjectCoverage struct {
	SubjectID     string          `json:"subject_id"`
	Name          string          `json:"name"`
	Icon          string          `json:"icon"`
	CompletedDays float64         `json:"completed_days"`
	TotalDays     int             `json:"total_days"`
	Percent       int             `json:"percent"`
	Topics        []TopicCoverage `json:"topics"`
}

// CoverageOf computes the coverage of one subject.
func CoverageOf(subject curriculum.Subject, store Store) SubjectCoverage {
	cov := SubjectCoverage{
		SubjectID: subject.ID,
		Name:      subject.Name,
		Icon:      subject.Icon,
		TotalDays: len(subject.Topics),
		Topics:    make([]TopicCoverage, 0, len(subject.Topics)),
	}

	for _, topic := range subject.Topics {
		checked := 0
		for i := range topic.Subtopics {
			if store[MakeKey(subject.ID, topic.ID, i)] {
				checked++
			}
		}
		var fraction float64
		if n := len(topic.Subtopics); n > 0 {
			fraction = float64(checked) / float64(n)
		}
		cov.CompletedDays += fraction
		cov.Topics = append(cov.Topics, TopicCoverage{
			TopicID:  topic.ID,
			Title:    topic.Title,
			Checked:  checked,
			Total:    len(topic.Subtopics),
			Fraction: fraction,
		})
	}

	cov.Percent = percent(cov.CompletedDays, float64(cov.TotalDays))
	return cov
}

// GlobalCoverage aggregates every subject's syllabus days.
type GlobalCoverage struct {
	CompletedDays float64           `json:"completed_days"`
	TotalDays     int               `json:"total_days"`
	Percent       int               `json:"percent"`
	Subjects      []SubjectCoverage `json:"subjects"`
}

// Coverage computes per-subject and overall coverage. Day counts are summed
// unrounded and only the final percentages are rounded.
func Coverage(subjects []curriculum.Subject, store Store) GlobalCoverage {
	global := GlobalCoverage{Subjects: make([]SubjectCoverage, 0, len(subjects))}
	for _, s := range subjects {
		cov := CoverageOf(s, store)
		global.CompletedDays += cov.CompletedDays
		global.TotalDays += cov.TotalDays
		global.Subjects = append(global.Subjects, cov)
	}
	global.Percent = percent(global.CompletedDays, float64(global.TotalDays))
	return global
}

// SubtopicState is one checkbox of the subject detail view.
type SubtopicState struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// TopicView is one topic of the subject detail view.
type TopicView struct {
	TopicCoverage
	Subtopics []SubtopicState `json:"subtopics"`
}

// SubjectView is everything the subject detail view renders.
type SubjectView struct {
	SubjectID string      `json:"subject_id"`
	Name      string      `json:"name"`
	Icon      string      `json:"icon"`
	Percent   int         `json:"percent"`
	Topics    []TopicView `json:"topics"`
}

// View builds the detail view of one subject.
func View(subject curriculum.Subject, store Store) SubjectView {
	cov := CoverageOf(subject, store)
	view := SubjectView{
		SubjectID: subject.ID,
		Name:      subject.Name,
		Icon:      subject.Icon,
		Percent:   cov.Percent,
		Topics:    make([]TopicView, 0, len(subject.Topics)),
	}
	for i, topic := range subject.Topics {
		tv := TopicView{
			TopicCoverage: cov.Topics[i],
			Subtopics:     make([]SubtopicState, 0, len(topic.Subtopics)),
		}
		for j, label := range topic.Subtopics {
			tv.Subtopics = append(tv.Subtopics, SubtopicState{
				Index:   j,
				Label:   label,
				Checked: store[MakeKey(subject.ID, topic.ID, j)],
			})
		}
		view.Topics = append(view.Topics, tv)
	}
	return view
}

// Summary is the full dashboard derived from one state.
type Summary struct {
	Today    Date           `json:"today"`
	Coverage GlobalCoverage `json:"coverage"`
	Streak   int            `json:"streak"`
	Weekly   WeeklyProgress `json:"weekly"`
	Calendar []CalendarDay  `json:"calendar"`
}

// Summarize derives every dashboard figure. It does not modify its inputs.
func Summarize(subjects []curriculum.Subject, state State, today Date) Summary {
	return Summary{
		Today:    today,
		Coverage: Coverage(subjects, state.Progress),
		Streak:   CurrentStreak(state.Activity, today),
		Weekly:   Weekly(state.Activity, today),
		Calendar: Calendar(state.Activity, today),
	}
}

func percent(part, whole float64) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}
