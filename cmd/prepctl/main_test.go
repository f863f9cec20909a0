package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
	"github.com/p-n-ai/prep-tracker/internal/practice"
	"github.com/p-n-ai/prep-tracker/internal/progress"
)

// setupEnv points prepctl at a fresh file store and the shipped syllabus.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PREP_STORE_BACKEND", "file")
	t.Setenv("PREP_STORE_DIR", filepath.Join(dir, "data"))
	t.Setenv("PREP_CURRICULUM_PATH", "../../syllabus")
	t.Setenv("PREP_LOG_LEVEL", "error")
	t.Setenv("PREP_TELEGRAM_BOT_TOKEN", "")
	t.Setenv("PREP_TELEGRAM_CHAT_ID", "")
	return dir
}

func prepctl(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(t.Context(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Usage(t *testing.T) {
	setupEnv(t)

	if _, err := prepctl(t, ""); err == nil {
		t.Error("no command should fail")
	}
	if _, err := prepctl(t, "", "--help"); err != nil {
		t.Errorf("--help error = %v", err)
	}
	if _, err := prepctl(t, "", "toggle", "--help"); err != nil {
		t.Errorf("toggle --help error = %v", err)
	}
	if _, err := prepctl(t, "", "dashbord"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command error = %v", err)
	}
}

func TestRun_BadArguments(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"missing toggle args", []string{"toggle", "history"}, nil},
		{"index not a number", []string{"toggle", "history", "h_day1", "x"}, nil},
		{"unknown subject", []string{"toggle", "nope", "h_day1", "0"}, curriculum.ErrUnknownSubject},
		{"index out of range", []string{"toggle", "history", "h_day1", "9"}, curriculum.ErrNoSuchSubtopic},
		{"unknown flag", []string{"dashboard", "--jsn"}, nil},
		{"unexpected argument", []string{"dashboard", "extra"}, nil},
		{"unknown test", []string{"test", "nope"}, nil},
		{"unknown problem", []string{"arena", "nope", "-"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := prepctl(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestToggle_PersistsAcrossRuns(t *testing.T) {
	setupEnv(t)

	out, err := prepctl(t, "", "toggle", "history", "h_day1", "0")
	if err != nil {
		t.Fatalf("toggle error = %v", err)
	}
	if !strings.Contains(out, "Checked: Indus Valley Civilization") || !strings.Contains(out, "0.20 syllabus days") {
		t.Errorf("toggle output = %q", out)
	}

	out, err = prepctl(t, "", "dashboard", "--json")
	if err != nil {
		t.Fatalf("dashboard error = %v", err)
	}
	var summary progress.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if summary.Coverage.CompletedDays != 0.2 || summary.Streak != 1 {
		t.Errorf("summary = %+v", summary.Coverage)
	}

	out, err = prepctl(t, "", "subject", "history")
	if err != nil {
		t.Fatalf("subject error = %v", err)
	}
	if !strings.Contains(out, "[x] 0 Indus Valley Civilization") || !strings.Contains(out, "[ ] 1 Vedic Age") {
		t.Errorf("subject output = %q", out)
	}
}

func TestBackupCommands(t *testing.T) {
	dir := setupEnv(t)
	backup := filepath.Join(dir, "backup.json")

	if _, err := prepctl(t, "", "toggle", "sql", "sql_day1", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := prepctl(t, "", "export", "-o", backup); err != nil {
		t.Fatalf("export error = %v", err)
	}

	if _, err := prepctl(t, "", "reset"); err == nil {
		t.Error("reset without --yes should fail")
	}
	if _, err := prepctl(t, "", "reset", "--yes"); err != nil {
		t.Fatalf("reset error = %v", err)
	}
	out, _ := prepctl(t, "", "dashboard")
	if !strings.Contains(out, "Coverage: 0%") {
		t.Errorf("dashboard after reset = %q", out)
	}

	if _, err := prepctl(t, "", "import", backup); err != nil {
		t.Fatalf("import error = %v", err)
	}
	out, _ = prepctl(t, "", "subject", "sql")
	if !strings.Contains(out, "[x] 1 ORDER BY, LIMIT") {
		t.Errorf("subject after import = %q", out)
	}

	if _, err := prepctl(t, `{"progress": 7}`, "import", "-"); err == nil {
		t.Error("import of a malformed backup should fail")
	}
}

func TestExport_Stdout(t *testing.T) {
	setupEnv(t)

	out, err := prepctl(t, "", "export", "-o", "-")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc["progress"] != nil || doc["activityLog"] != nil {
		t.Errorf("fresh export = %v, want null documents", doc)
	}
}

func TestListings(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"papers"}, []string{"2023", "/papers/2021_paper2.pdf"}},
		{[]string{"tests"}, []string{"mock_1", "polity_1"}},
		{[]string{"tests", "--subject", "polity"}, []string{"polity_1"}},
		{[]string{"problems"}, []string{"code_1", "Two Sum", "code_4"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := prepctl(t, "", tt.args...)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}

	out, _ := prepctl(t, "", "tests", "--subject", "polity")
	if strings.Contains(out, "mock_1") {
		t.Errorf("subject filter kept the full mock:\n%s", out)
	}
}

func TestPracticeTest(t *testing.T) {
	setupEnv(t)

	out, err := prepctl(t, "b\nr\ns\n", "test", "mock_1")
	if err != nil {
		t.Fatalf("test error = %v", err)
	}
	for _, want := range []string{
		"CAPF Full Length Mock Test 01",
		"Score: 2/2",
		"Accuracy: 100%",
		"1. correct (you: b, answer: b) [review]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPracticeTest_InputClosedSubmits(t *testing.T) {
	setupEnv(t)

	out, err := prepctl(t, "", "test", "polity_1")
	if err != nil {
		t.Fatalf("test error = %v", err)
	}
	if !strings.Contains(out, "Input closed, submitting.") || !strings.Contains(out, "Score: 0/6") {
		t.Errorf("output = %q", out)
	}
}

func TestArena(t *testing.T) {
	dir := setupEnv(t)

	good := filepath.Join(dir, "good.star")
	os.WriteFile(good, []byte("def factorial(n):\n    return 1 if n <= 1 else n * factorial(n - 1)\n"), 0o644)
	out, err := prepctl(t, "", "arena", "code_4", good)
	if err != nil {
		t.Fatalf("arena error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "All test cases passed!") {
		t.Errorf("output = %q", out)
	}

	out, err = prepctl(t, "def factorial(n):\n    return n\n", "arena", "code_4", "-")
	if !errors.Is(err, errSilent) {
		t.Errorf("failing solution error = %v, want errSilent", err)
	}
	if !strings.Contains(out, "FAIL") {
		t.Errorf("output = %q", out)
	}
}

func TestReport(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "report.xlsx")

	if _, err := prepctl(t, "", "report", "-o", path); err != nil {
		t.Fatalf("report error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Errorf("report file = %v, %v", info, err)
	}
}

func TestRemind(t *testing.T) {
	setupEnv(t)

	out, err := prepctl(t, "", "remind", "--dry-run")
	if err != nil {
		t.Fatalf("remind --dry-run error = %v", err)
	}
	if !strings.Contains(out, "Start a new streak") {
		t.Errorf("reminder = %q", out)
	}

	if _, err := prepctl(t, "", "remind"); err == nil {
		t.Error("remind without a chat should fail")
	}
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"a", 0, true},
		{"d", 3, true},
		{"1", 0, true},
		{"4", 3, true},
		{"0", 0, false},
		{"zz", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseOption(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseOption(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestHandleSessionInput(t *testing.T) {
	paper := curriculum.TestPaper{
		ID:       "p",
		Duration: 1,
		Questions: []curriculum.Question{
			{ID: 1, Text: "one", Options: []string{"x", "y"}, CorrectAnswer: 1},
			{ID: 2, Text: "two", Options: []string{"x", "y"}, CorrectAnswer: 0},
		},
	}
	s, err := practice.Start(paper, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer

	for _, line := range []string{"b", "n", "a", "g 1", "r", "c", "bogus"} {
		if handleSessionInput(&out, s, line) {
			t.Fatalf("%q submitted the session", line)
		}
	}
	if got := s.Snapshot(); got.Current != 0 || got.Answered != 2 || len(got.Marked) != 1 {
		t.Errorf("snapshot = %+v", got)
	}
	if !strings.Contains(out.String(), "unknown input") || !strings.Contains(out.String(), "! ") {
		t.Errorf("errors not reported: %q", out.String())
	}

	if !handleSessionInput(&out, s, "s") {
		t.Error("s did not submit")
	}
	if r := s.Result(); r.Correct != 2 {
		t.Errorf("correct = %d, want 2", r.Correct)
	}
}
