// Package arena runs user-submitted practice code against a problem's test
// cases. Code is written in Starlark, a Python dialect: def, for, while, if,
// lists, dicts and recursion all behave as in Python.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/p-n-ai/prep-tracker/internal/curriculum"
)

var defPattern = regexp.MustCompile(`def\s+(\w+)`)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// CaseResult is the outcome of one test case. Input and Expected are JSON
// renderings for display.
type CaseResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// Result is the outcome of one submission.
type Result struct {
	Passed bool         `json:"passed"`
	Error  string       `json:"error,omitempty"`
	Output string       `json:"output,omitempty"`
	Cases  []CaseResult `json:"cases"`
}

// Runner executes submissions with bounded work.
type Runner struct {
	maxSteps uint64
	timeout  time.Duration
}

// New returns a Runner that aborts a submission after maxSteps Starlark
// steps per call or after timeout overall.
func New(maxSteps int, timeout time.Duration) *Runner {
	return &Runner{maxSteps: uint64(max(maxSteps, 1)), timeout: timeout}
}

// Run binds the first function defined in code and calls it once per test
// case with the case input spread as positional arguments. A failing case
// never stops the others; only a submission that cannot be loaded at all
// yields a global error.
func (r *Runner) Run(ctx context.Context, code string, cases []curriculum.TestCase) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var out strings.Builder
	fn, err := r.load(ctx, code, &out)
	if err != nil {
		slog.Info("arena submission failed to load", "error", err)
		return Result{
			Error:  "Runtime Error: " + err.Error(),
			Output: out.String(),
			Cases: []CaseResult{{
				Input:    "-",
				Expected: "-",
				Actual:   "Runtime Error: " + err.Error(),
			}},
		}
	}

	res := Result{Passed: true, Cases: make([]CaseResult, 0, len(cases))}
	for _, tc := range cases {
		cr := CaseResult{
			Input:    render(tc.Input),
			Expected: render(tc.Expected),
		}
		actual, err := r.call(ctx, fn, tc.Input, &out)
		if err != nil {
			cr.Actual = "Error: " + err.Error()
		} else {
			cr.Actual = render(actual)
			cr.Passed = equal(actual, tc.Expected)
		}
		if !cr.Passed {
			res.Passed = false
		}
		res.Cases = append(res.Cases, cr)
	}
	res.Output = out.String()
	return res
}

// load executes the module and returns the first defined function.
func (r *Runner) load(ctx context.Context, code string, out *strings.Builder) (starlark.Callable, error) {
	m := defPattern.FindStringSubmatch(code)
	if m == nil {
		return nil, errors.New("Could not find function definition. Did you change the function name?")
	}
	name := m[1]

	thread := r.thread(out)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "solution.star", code, nil)
	if err != nil {
		return nil, describe(err)
	}
	fn, ok := globals[name].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("Function '%s' is not defined.", name)
	}
	return fn, nil
}

// call invokes fn on one case, converting any panic into an error.
func (r *Runner) call(ctx context.Context, fn starlark.Callable, input []any, out *strings.Builder) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()

	args := make(starlark.Tuple, 0, len(input))
	for _, in := range input {
		v, err := toStarlark(in)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	thread := r.thread(out)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	v, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, describe(err)
	}
	return fromStarlark(v), nil
}

func (r *Runner) thread(out *strings.Builder) *starlark.Thread {
	thread := &starlark.Thread{
		Name: "arena",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteByte('\n')
		},
	}
	thread.SetMaxExecutionSteps(r.maxSteps)
	return thread
}

// describe strips the Starlark backtrace down to the message.
func describe(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Msg)
	}
	return err
}

// render formats v the way the problem bank shows values.
func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// equal compares two values after a JSON round trip, so 120 equals 120.0 and
// map key order does not matter.
func equal(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
