package curriculum

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	subjectSuffix  = ".subject.yaml"
	testsSuffix    = ".tests.yaml"
	problemsSuffix = ".problems.yaml"
	papersFile     = "papers.yaml"
)

// Lookup errors returned by Catalog.Subtopic.
var (
	ErrUnknownSubject = errors.New("unknown subject")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrNoSuchSubtopic = errors.New("subtopic index out of range")
)

// Catalog loads and caches the syllabus and its question banks from the filesystem.
// It is read-only after loading.
type Catalog struct {
	rootDir  string
	subjects map[string]Subject
	tests    []TestPaper
	papers   []PreviousPaper
	problems []CodingProblem
	mu       sync.RWMutex
}

// NewLoader creates a catalog and loads all content under rootDir.
func NewLoader(rootDir string) (*Catalog, error) {
	c := &Catalog{
		rootDir:  rootDir,
		subjects: make(map[string]Subject),
	}

	if err := c.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded",
		"subjects", len(c.subjects),
		"tests", len(c.tests),
		"papers", len(c.papers),
		"problems", len(c.problems),
	)
	return c, nil
}

// NewCatalog builds a catalog from in-memory subjects, in the given order.
func NewCatalog(subjects ...Subject) *Catalog {
	c := &Catalog{subjects: make(map[string]Subject, len(subjects))}
	for i, s := range subjects {
		if s.Order == 0 {
			s.Order = i + 1
		}
		c.subjects[s.ID] = s
	}
	return c
}

// Subjects returns all subjects ordered by their order field, then ID.
func (c *Catalog) Subjects() []Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subjects := make([]Subject, 0, len(c.subjects))
	for _, s := range c.subjects {
		subjects = append(subjects, s)
	}
	slices.SortFunc(subjects, func(a, b Subject) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})
	return subjects
}

// GetSubject returns a subject by ID.
func (c *Catalog) GetSubject(id string) (Subject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// SubtopicCount reports how many subtopics a topic has. The second result
// is false when the subject or topic is not in the catalog.
func (c *Catalog) SubtopicCount(subjectID, topicID string) (int, bool) {
	s, ok := c.GetSubject(subjectID)
	if !ok {
		return 0, false
	}
	t, ok := s.Topic(topicID)
	if !ok {
		return 0, false
	}
	return len(t.Subtopics), true
}

// Subtopic returns the label of one subtopic, or an error naming the first
// part of the reference that does not resolve.
func (c *Catalog) Subtopic(subjectID, topicID string, index int) (string, error) {
	s, ok := c.GetSubject(subjectID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
	}
	t, ok := s.Topic(topicID)
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrUnknownTopic, topicID, subjectID)
	}
	if index < 0 || index >= len(t.Subtopics) {
		return "", fmt.Errorf("%w: %s has subtopics 0-%d", ErrNoSuchSubtopic, topicID, len(t.Subtopics)-1)
	}
	return t.Subtopics[index], nil
}

// Tests returns every practice test paper.
func (c *Catalog) Tests() []TestPaper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tests)
}

// TestsFor returns the test papers of one subject, or the full mocks for AllSubjects.
func (c *Catalog) TestsFor(subjectID string) []TestPaper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var tests []TestPaper
	for _, t := range c.tests {
		if t.SubjectID == subjectID {
			tests = append(tests, t)
		}
	}
	return tests
}

// GetTest returns a test paper by ID.
func (c *Catalog) GetTest(id string) (TestPaper, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tests {
		if t.ID == id {
			return t, true
		}
	}
	return TestPaper{}, false
}

// Papers returns previous-year papers, newest first.
func (c *Catalog) Papers() []PreviousPaper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.papers)
}

// Problems returns the coding problem bank.
func (c *Catalog) Problems() []CodingProblem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.problems)
}

// GetProblem returns a coding problem by ID.
func (c *Catalog) GetProblem(id string) (CodingProblem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.problems {
		if p.ID == id {
			return p, true
		}
	}
	return CodingProblem{}, false
}

func (c *Catalog) loadAll() error {
	err := filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch {
		case strings.HasSuffix(path, subjectSuffix):
			return c.loadSubject(path)
		case strings.HasSuffix(path, testsSuffix):
			return c.loadTests(path)
		case strings.HasSuffix(path, problemsSuffix):
			return c.loadProblems(path)
		case filepath.Base(path) == papersFile:
			return c.loadPapers(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortStableFunc(c.papers, func(a, b PreviousPaper) int {
		return cmp.Compare(b.Year, a.Year)
	})
	return nil
}

func (c *Catalog) loadSubject(path string) error {
	var subject Subject
	if !readYAML(path, &subject) {
		return nil
	}
	if subject.ID == "" {
		return nil // Not a subject file
	}
	if subject.Name == "" {
		subject.Name = displayName(subject.ID)
	}

	c.mu.Lock()
	if _, dup := c.subjects[subject.ID]; dup {
		slog.Warn("duplicate subject id, replacing", "id", subject.ID, "path", path)
	}
	c.subjects[subject.ID] = subject
	c.mu.Unlock()
	return nil
}

func (c *Catalog) loadTests(path string) error {
	var tests []TestPaper
	if !readYAML(path, &tests) {
		return nil
	}
	c.mu.Lock()
	c.tests = append(c.tests, tests...)
	c.mu.Unlock()
	return nil
}

func (c *Catalog) loadProblems(path string) error {
	var problems []CodingProblem
	if !readYAML(path, &problems) {
		return nil
	}
	c.mu.Lock()
	c.problems = append(c.problems, problems...)
	c.mu.Unlock()
	return nil
}

func (c *Catalog) loadPapers(path string) error {
	var papers []PreviousPaper
	if !readYAML(path, &papers) {
		return nil
	}
	c.mu.Lock()
	c.papers = append(c.papers, papers...)
	c.mu.Unlock()
	return nil
}

// readYAML decodes path into v. Unreadable or invalid files are skipped.
func readYAML(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skipping unreadable curriculum file", "path", path, "error", err)
		return false
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return false
	}
	return true
}

// displayName derives a readable name from a subject ID ("power_bi" -> "Power Bi").
func displayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}
