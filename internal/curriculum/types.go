package curriculum

// Subject is one syllabus subject (e.g., Polity) loaded from a *.subject.yaml file.
type Subject struct {
	ID     string     `yaml:"id" json:"id"`
	Name   string     `yaml:"name" json:"name"`
	Icon   string     `yaml:"icon" json:"icon"`
	Order  int        `yaml:"order" json:"-"`
	Topics []DayTopic `yaml:"topics" json:"topics"`
}

// DayTopic is one syllabus day within a subject. Every topic weighs exactly
// one day toward coverage no matter how many subtopics it lists.
type DayTopic struct {
	ID        string   `yaml:"id" json:"id"`
	Title     string   `yaml:"title" json:"title"`
	Subtopics []string `yaml:"subtopics" json:"subtopics"`
}

// Topic returns the topic with the given ID.
func (s Subject) Topic(id string) (DayTopic, bool) {
	for _, t := range s.Topics {
		if t.ID == id {
			return t, true
		}
	}
	return DayTopic{}, false
}

// Difficulty grades practice tests and coding problems.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// AllSubjects is the subject ID used by full-length mock tests.
const AllSubjects = "all"

// TestPaper is a timed multiple-choice practice test.
type TestPaper struct {
	ID         string     `yaml:"id" json:"id"`
	Title      string     `yaml:"title" json:"title"`
	SubjectID  string     `yaml:"subject_id" json:"subject_id"`
	Difficulty Difficulty `yaml:"difficulty" json:"difficulty"`
	Duration   int        `yaml:"duration" json:"duration"` // minutes
	Questions  []Question `yaml:"questions" json:"questions"`
}

// Question is a single multiple-choice question.
type Question struct {
	ID            int      `yaml:"id" json:"id"`
	Text          string   `yaml:"text" json:"text"`
	Options       []string `yaml:"options" json:"options"`
	CorrectAnswer int      `yaml:"correct_answer" json:"correct_answer"`
	Explanation   string   `yaml:"explanation" json:"explanation,omitempty"`
}

// PreviousPaper links the official papers of one exam year.
type PreviousPaper struct {
	Year      int    `yaml:"year" json:"year"`
	Paper1URL string `yaml:"paper1_url" json:"paper1_url"`
	Paper2URL string `yaml:"paper2_url" json:"paper2_url"`
}

// CodingProblem is a practice problem for the coding arena.
type CodingProblem struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Difficulty  Difficulty `yaml:"difficulty" json:"difficulty"`
	Description string     `yaml:"description" json:"description"`
	StarterCode string     `yaml:"starter_code" json:"starter_code"`
	TestCases   []TestCase `yaml:"test_cases" json:"test_cases"`
}

// TestCase holds positional arguments and the expected return value.
type TestCase struct {
	Input    []any `yaml:"input" json:"input"`
	Expected any   `yaml:"expected" json:"expected"`
}
