package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/p-n-ai/prep-tracker/internal/app"
	"github.com/p-n-ai/prep-tracker/internal/practice"
)

const sessionHelp = `a-d or 1-4  answer    n  next    p  previous    g N  go to question N
r  mark/unmark for review    s  submit    ?  help`

// runPracticeTest runs an interactive session. The clock auto-submits the
// paper when time runs out and notifies the configured chat.
func runPracticeTest(ctx context.Context, e *env, _ *pflag.FlagSet, args []string) error {
	paper, ok := e.app.Catalog.GetTest(args[0])
	if !ok {
		return fmt.Errorf("unknown test %q", args[0])
	}
	s, err := practice.Start(paper, time.Now())
	if err != nil {
		return err
	}

	runner := practice.Runner{Notifier: sessionNotifier(e.app)}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	clock := make(chan bool, 1)
	go func() { clock <- runner.RunWithClock(ctx, s) }()

	lines := make(chan string)
	go scanLines(ctx, e.stdin, lines)

	fmt.Fprintf(e.stdout, "%s: %d questions, %d minutes\n%s\n", paper.Title, len(paper.Questions), paper.Duration, sessionHelp)
	printQuestion(e.stdout, s.Snapshot())

	timedOut := false
loop:
	for {
		select {
		case timedOut = <-clock:
			break loop
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(e.stdout, "Input closed, submitting.")
				_ = s.Submit(time.Now())
				break loop
			}
			if done := handleSessionInput(e.stdout, s, line); done {
				break loop
			}
			printQuestion(e.stdout, s.Snapshot())
		}
	}
	cancel()
	if !timedOut {
		timedOut = <-clock
	}
	if timedOut {
		fmt.Fprintf(e.stdout, "\n%s %s\n", practice.TimeUp.Title, practice.TimeUp.Body)
	}

	printResult(e.stdout, s.Result())
	return nil
}

func sessionNotifier(a *app.App) practice.Notifier {
	notifiers := practice.MultiNotifier{practice.LogNotifier{}}
	if a.Config.Telegram.ChatID == "" {
		return notifiers
	}
	gw, err := a.Gateway()
	if err != nil || gw == nil {
		return notifiers
	}
	return append(notifiers, practice.ChatNotifier{
		Sender:  gw,
		Channel: app.TelegramChannel,
		UserID:  a.Config.Telegram.ChatID,
	})
}

func scanLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// handleSessionInput applies one line of input and reports whether the
// session was submitted.
func handleSessionInput(w io.Writer, s *practice.Session, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd := fields[0]; {
	case cmd == "s":
		if err := s.Submit(time.Now()); err != nil {
			fmt.Fprintf(w, "! %v\n", err)
			return false
		}
		return true
	case cmd == "n":
		err = s.Next()
	case cmd == "p":
		err = s.Prev()
	case cmd == "r":
		err = s.ToggleReview()
	case cmd == "g" && len(fields) == 2:
		var n int
		if n, err = strconv.Atoi(fields[1]); err == nil {
			err = s.Goto(n - 1)
		}
	case cmd == "?":
		fmt.Fprintln(w, sessionHelp)
	default:
		opt, ok := parseOption(cmd)
		if !ok {
			fmt.Fprintf(w, "! unknown input %q, ? for help\n", line)
			return false
		}
		err = s.Answer(opt)
	}
	if err != nil {
		fmt.Fprintf(w, "! %v\n", err)
	}
	return false
}

// parseOption accepts a letter (a, b, ...) or a 1-based number.
func parseOption(s string) (int, bool) {
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return int(s[0] - 'a'), true
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 {
		return n - 1, true
	}
	return 0, false
}

func printQuestion(w io.Writer, snap practice.Snapshot) {
	clock := snap.TimeLeftLabel
	if snap.LowTime {
		clock += " (hurry!)"
	}
	fmt.Fprintf(w, "\n[%s] Question %d of %d  (%d answered, %d marked)\n", clock, snap.Current+1, snap.Total, snap.Answered, len(snap.Marked))
	fmt.Fprintln(w, snap.Question.Text)
	for i, opt := range snap.Question.Options {
		mark := " "
		if snap.Question.Selected != nil && *snap.Question.Selected == i {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %c) %s\n", mark, 'a'+i, opt)
	}
}

func printResult(w io.Writer, r practice.Result) {
	fmt.Fprintf(w, "\nScore: %d/%d  Correct: %d/%d  Accuracy: %d%%\n", r.Score, r.MaxScore, r.Correct, r.Total, r.Accuracy)
	for i, q := range r.Questions {
		chosen := "-"
		if q.Chosen != nil {
			chosen = string(rune('a' + *q.Chosen))
		}
		verdict := "wrong"
		switch {
		case q.IsCorrect:
			verdict = "correct"
		case q.Chosen == nil:
			verdict = "skipped"
		}
		review := ""
		if q.Marked {
			review = " [review]"
		}
		fmt.Fprintf(w, "%d. %s (you: %s, answer: %c)%s\n", i+1, verdict, chosen, 'a'+q.Correct, review)
		if q.Explanation != "" {
			fmt.Fprintf(w, "   %s\n", q.Explanation)
		}
	}
}
