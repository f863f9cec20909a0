package arena

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
)

func newRunner() *Runner {
	return New(100_000, 5*time.Second)
}

func TestRun_AllPass(t *testing.T) {
	code := `
def factorial(n):
    if n <= 1:
        return 1
    return n * factorial(n - 1)
`
	cases := []curriculum.TestCase{
		{Input: []any{5}, Expected: 120},
		{Input: []any{0}, Expected: 1},
		{Input: []any{3.0}, Expected: 6.0},
	}

	res := newRunner().Run(t.Context(), code, cases)
	if !res.Passed || res.Error != "" {
		t.Fatalf("Run() = %+v, want pass", res)
	}
	if len(res.Cases) != 3 {
		t.Fatalf("len(Cases) = %d, want 3", len(res.Cases))
	}
	if c := res.Cases[0]; c.Input != "[5]" || c.Expected != "120" || c.Actual != "120" {
		t.Errorf("case 0 = %+v", c)
	}
}

func TestRun_StructuredValues(t *testing.T) {
	code := `
def two_sum(nums, target):
    seen = {}
    for i, n in enumerate(nums):
        if target - n in seen:
            return [seen[target - n], i]
        seen[n] = i
    return []

def unused():
    pass
`
	cases := []curriculum.TestCase{
		{Input: []any{[]any{2, 7, 11, 15}, 9}, Expected: []any{0, 1}},
		{Input: []any{[]any{3, 2, 4}, 6}, Expected: []any{1, 2}},
		{Input: []any{[]any{1}, 5}, Expected: []any{}},
		{Input: []any{[]any{1, 2}, 3}, Expected: []any{1, 0}},
	}

	res := newRunner().Run(t.Context(), code, cases)
	if res.Passed {
		t.Error("the last case should fail")
	}
	for i, want := range []bool{true, true, true, false} {
		if res.Cases[i].Passed != want {
			t.Errorf("case %d passed = %v, want %v (%+v)", i, res.Cases[i].Passed, want, res.Cases[i])
		}
	}
	if res.Cases[3].Actual != "[0,1]" {
		t.Errorf("case 3 actual = %q", res.Cases[3].Actual)
	}
}

func TestRun_DictResultIgnoresKeyOrder(t *testing.T) {
	code := `
def count_chars(s):
    out = {}
    for c in s.elems():
        out[c] = out.get(c, 0) + 1
    return out
`
	cases := []curriculum.TestCase{
		{Input: []any{"abca"}, Expected: map[string]any{"c": 1, "b": 1, "a": 2}},
	}
	res := newRunner().Run(t.Context(), code, cases)
	if !res.Passed {
		t.Fatalf("Run() = %+v, want pass", res)
	}
}

func TestRun_WhileLoop(t *testing.T) {
	code := `
def digits(n):
    count = 0
    while n > 0:
        n = n // 10
        count += 1
    return count
`
	res := newRunner().Run(t.Context(), code, []curriculum.TestCase{{Input: []any{12345}, Expected: 5}})
	if !res.Passed {
		t.Fatalf("Run() = %+v, want pass", res)
	}
}

func TestRun_PerCaseErrorIsIsolated(t *testing.T) {
	code := `
def invert(x):
    return 10 // x
`
	cases := []curriculum.TestCase{
		{Input: []any{0}, Expected: 0},
		{Input: []any{2}, Expected: 5},
		{Input: []any{}, Expected: 0},
	}
	res := newRunner().Run(t.Context(), code, cases)
	if res.Passed || res.Error != "" {
		t.Fatalf("Run() = %+v", res)
	}
	if !strings.HasPrefix(res.Cases[0].Actual, "Error: ") {
		t.Errorf("division by zero actual = %q", res.Cases[0].Actual)
	}
	if !res.Cases[1].Passed {
		t.Errorf("case 1 = %+v, want pass after an earlier failure", res.Cases[1])
	}
	if !strings.HasPrefix(res.Cases[2].Actual, "Error: ") {
		t.Errorf("wrong arity actual = %q", res.Cases[2].Actual)
	}
}

func TestRun_GlobalErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{"no def", "x = 1\n", "Could not find function definition"},
		{"syntax error", "def broken(:\n    return 1\n", "Runtime Error: "},
		{"not bound", "# def ghost(x)\nx = 1\n", "Function 'ghost' is not defined."},
		{"top-level failure", "def f(x):\n    return x\n\n1 // 0\n", "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newRunner().Run(t.Context(), tt.code, []curriculum.TestCase{{Input: []any{1}, Expected: 1}})
			if res.Passed {
				t.Fatal("Run() should fail")
			}
			if !strings.HasPrefix(res.Error, "Runtime Error: ") || !strings.Contains(res.Error, tt.wantMsg) {
				t.Errorf("Error = %q, want it to contain %q", res.Error, tt.wantMsg)
			}
			if len(res.Cases) != 1 {
				t.Fatalf("len(Cases) = %d, want 1 synthetic row", len(res.Cases))
			}
			c := res.Cases[0]
			if c.Input != "-" || c.Expected != "-" || c.Passed || c.Actual != res.Error {
				t.Errorf("synthetic row = %+v", c)
			}
		})
	}
}

func TestRun_StepLimit(t *testing.T) {
	code := `
def spin(n):
    while True:
        n += 1
    return n
`
	r := New(10_000, 5*time.Second)
	res := r.Run(t.Context(), code, []curriculum.TestCase{{Input: []any{0}, Expected: 0}})
	if res.Passed {
		t.Fatal("infinite loop should not pass")
	}
	if !strings.Contains(res.Cases[0].Actual, "too many steps") {
		t.Errorf("actual = %q, want step-limit error", res.Cases[0].Actual)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	code := `
def spin(n):
    while True:
        n += 1
`
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := New(1<<40, time.Minute)
	res := r.Run(ctx, code, []curriculum.TestCase{{Input: []any{0}, Expected: 0}})
	if res.Passed {
		t.Fatal("cancelled run should not pass")
	}
}

func TestRun_CapturesPrint(t *testing.T) {
	code := `
def echo(x):
    print("got", x)
    return x
`
	res := newRunner().Run(t.Context(), code, []curriculum.TestCase{{Input: []any{"hi"}, Expected: "hi"}})
	if !res.Passed || res.Output != "got hi\n" {
		t.Errorf("Run() = %+v", res)
	}
}

func TestToStarlark_JSONNumbers(t *testing.T) {
	var input []any
	dec := json.NewDecoder(strings.NewReader(`[3, 2.5, {"k": [true, null]}]`))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		t.Fatal(err)
	}

	code := "def kinds(a, b, c):\n    return [type(a), type(b), type(c), type(c['k'][1])]\n"
	res := newRunner().Run(t.Context(), code, []curriculum.TestCase{{
		Input:    input,
		Expected: []any{"int", "float", "dict", "NoneType"},
	}})
	if !res.Passed {
		t.Fatalf("Run() = %+v", res)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int vs float", int64(120), 120.0, true},
		{"strings", "a", "a", true},
		{"nested", []any{map[string]any{"x": int64(1)}}, []any{map[string]any{"x": 1}}, true},
		{"length differs", []any{1}, []any{1, 2}, false},
		{"nil vs empty", nil, []any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := equal(tt.a, tt.b); got != tt.want {
				t.Errorf("equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
