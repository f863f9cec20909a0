package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/app"
	"github.com/p-n-ai/prep-tracker/internal/arena"
	"github.com/p-n-ai/prep-tracker/internal/curriculum"
	"github.com/p-n-ai/prep-tracker/internal/practice"
	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/report"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

// maxBodyBytes caps request bodies, backups included.
const maxBodyBytes = 4 << 20

type server struct {
	tracker *tracker.Tracker
	catalog *curriculum.Catalog
	arena   *arena.Runner
	ready   func(context.Context) error
	now     func() time.Time
}

func newServer(a *app.App) *server {
	return &server{
		tracker: a.Tracker,
		catalog: a.Catalog,
		arena:   a.Arena,
		ready:   a.Backend.HealthCheck,
		now:     time.Now,
	}
}

// routes creates the HTTP router.
func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/subjects", s.handleSubjects)
	mux.HandleFunc("GET /api/subjects/{id}", s.handleSubject)
	mux.HandleFunc("POST /api/progress/toggle", s.handleToggle)

	mux.HandleFunc("GET /api/backup", s.handleExport)
	mux.HandleFunc("POST /api/backup", s.handleImport)
	mux.HandleFunc("DELETE /api/backup", s.handleReset)

	mux.HandleFunc("GET /api/papers", s.handlePapers)
	mux.HandleFunc("GET /api/tests", s.handleTests)
	mux.HandleFunc("POST /api/tests/{id}/score", s.handleScore)
	mux.HandleFunc("GET /api/problems", s.handleProblems)
	mux.HandleFunc("POST /api/problems/{id}/run", s.handleRun)

	mux.HandleFunc("GET /api/report.xlsx", s.handleReport)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Dashboard())
}

func (s *server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Subjects())
}

func (s *server) handleSubject(w http.ResponseWriter, r *http.Request) {
	view, ok := s.tracker.Subject(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "subject not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type toggleRequest struct {
	SubjectID string `json:"subjectId"`
	TopicID   string `json:"topicId"`
	Index     *int   `json:"index"`
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubjectID == "" || req.TopicID == "" || req.Index == nil {
		writeError(w, http.StatusBadRequest, "subjectId, topicId and index are required")
		return
	}

	if _, err := s.catalog.Subtopic(req.SubjectID, req.TopicID, *req.Index); err != nil {
		status := http.StatusNotFound
		if errors.Is(err, curriculum.ErrNoSuchSubtopic) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	res := s.tracker.Toggle(progress.Ref{SubjectID: req.SubjectID, TopicID: req.TopicID, Index: *req.Index})
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.tracker.Export()
	if err != nil {
		slog.Error("backup export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(tracker.BackupFilename(s.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "backup too large")
		return
	}
	if err := s.tracker.Import(data); err != nil {
		if errors.Is(err, tracker.ErrInvalidBackup) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("backup import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Dashboard())
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(); err != nil {
		slog.Error("progress reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Dashboard())
}

func (s *server) handlePapers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Papers())
}

// paperView is a test paper without its answer key.
type paperView struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	SubjectID  string                `json:"subject_id"`
	Difficulty curriculum.Difficulty `json:"difficulty"`
	Duration   int                   `json:"duration"`
	Questions  []questionView        `json:"questions"`
}

type questionView struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

func viewPaper(p curriculum.TestPaper) paperView {
	v := paperView{
		ID:         p.ID,
		Title:      p.Title,
		SubjectID:  p.SubjectID,
		Difficulty: p.Difficulty,
		Duration:   p.Duration,
		Questions:  make([]questionView, 0, len(p.Questions)),
	}
	for _, q := range p.Questions {
		v.Questions = append(v.Questions, questionView{ID: q.ID, Text: q.Text, Options: q.Options})
	}
	return v
}

func (s *server) handleTests(w http.ResponseWriter, r *http.Request) {
	papers := s.catalog.Tests()
	if subject := r.URL.Query().Get("subject"); subject != "" {
		papers = s.catalog.TestsFor(subject)
	}
	views := make([]paperView, 0, len(papers))
	for _, p := range papers {
		views = append(views, viewPaper(p))
	}
	writeJSON(w, http.StatusOK, views)
}

type scoreRequest struct {
	Answers map[int]int `json:"answers"`
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	paper, ok := s.catalog.GetTest(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "test not found")
		return
	}
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, practice.Score(paper, req.Answers))
}

// problemView hides the expected outputs of a problem's test cases.
type problemView struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Difficulty  curriculum.Difficulty `json:"difficulty"`
	Description string                `json:"description"`
	StarterCode string                `json:"starter_code"`
	Cases       int                   `json:"cases"`
}

func (s *server) handleProblems(w http.ResponseWriter, r *http.Request) {
	problems := s.catalog.Problems()
	views := make([]problemView, 0, len(problems))
	for _, p := range problems {
		views = append(views, problemView{
			ID:          p.ID,
			Title:       p.Title,
			Difficulty:  p.Difficulty,
			Description: p.Description,
			StarterCode: p.StarterCode,
			Cases:       len(p.TestCases),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type runRequest struct {
	Code string `json:"code"`
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	problem, ok := s.catalog.GetProblem(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	var req runRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.arena.Run(r.Context(), req.Code, problem.TestCases)
	slog.Info("arena run", "problem_id", problem.ID, "passed", res.Passed)
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	summary := s.tracker.Dashboard()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(report.Filename(summary.Today)))
	if err := report.Write(w, summary, s.tracker.State().Activity); err != nil {
		slog.Error("report export failed", "error", err)
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
