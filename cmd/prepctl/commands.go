package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/p-n-ai/prep-tracker/internal/app"
	"github.com/p-n-ai/prep-tracker/internal/bot"
	"github.com/p-n-ai/prep-tracker/internal/chat"
	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/report"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

var commands = []command{
	{
		name:    "dashboard",
		summary: "Show coverage, streak and weekly goal",
		flags:   jsonFlag,
		run:     runDashboard,
	},
	{
		name:    "subject",
		args:    "<subject>",
		summary: "Show one subject's topics and checked subtopics",
		nargs:   1,
		flags:   jsonFlag,
		run:     runSubject,
	},
	{
		name:    "toggle",
		args:    "<subject> <topic> <index>",
		summary: "Tick or untick one subtopic",
		nargs:   3,
		run:     runToggle,
	},
	{
		name:    "export",
		summary: "Write a backup of all progress",
		flags: func(fs *pflag.FlagSet) {
			fs.StringP("out", "o", "", "output file, - for stdout (default prep-backup-YYYY-MM-DD.json)")
		},
		run: runExport,
	},
	{
		name:    "import",
		args:    "<file|->",
		summary: "Restore progress from a backup",
		nargs:   1,
		run:     runImport,
	},
	{
		name:    "reset",
		summary: "Delete all progress and activity",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("yes", false, "confirm the reset")
		},
		run: runReset,
	},
	{
		name:    "papers",
		summary: "List previous years' papers",
		run:     runPapers,
	},
	{
		name:    "tests",
		summary: "List practice tests",
		flags: func(fs *pflag.FlagSet) {
			fs.String("subject", "", "only tests for this subject (all for full mocks)")
		},
		run: runTests,
	},
	{
		name:    "test",
		args:    "<test-id>",
		summary: "Take a timed practice test",
		nargs:   1,
		run:     runPracticeTest,
	},
	{
		name:    "problems",
		summary: "List coding problems",
		run:     runProblems,
	},
	{
		name:    "arena",
		args:    "<problem-id> <file|->",
		summary: "Run a solution against a coding problem's test cases",
		nargs:   2,
		run:     runArena,
	},
	{
		name:    "report",
		summary: "Write an xlsx report of coverage and activity",
		flags: func(fs *pflag.FlagSet) {
			fs.StringP("out", "o", "", "output file (default prep-report-YYYY-MM-DD.xlsx)")
		},
		run: runReport,
	},
	{
		name:    "remind",
		summary: "Send the daily streak reminder to the configured chat",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("dry-run", false, "print the reminder instead of sending it")
		},
		run: runRemind,
	},
}

func jsonFlag(fs *pflag.FlagSet) {
	fs.Bool("json", false, "print JSON")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDashboard(_ context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	summary := e.app.Tracker.Dashboard()
	if asJSON, _ := fs.GetBool("json"); asJSON {
		return printJSON(e.stdout, summary)
	}

	fmt.Fprintln(e.stdout, bot.FormatDashboard(summary))
	fmt.Fprintln(e.stdout)
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tDAYS\tCOVERAGE")
	for _, s := range summary.Coverage.Subjects {
		fmt.Fprintf(tw, "%s\t%.2f/%d\t%d%%\n", s.SubjectID, s.CompletedDays, s.TotalDays, s.Percent)
	}
	return tw.Flush()
}

func runSubject(_ context.Context, e *env, fs *pflag.FlagSet, args []string) error {
	view, ok := e.app.Tracker.Subject(args[0])
	if !ok {
		return fmt.Errorf("unknown subject %q", args[0])
	}
	if asJSON, _ := fs.GetBool("json"); asJSON {
		return printJSON(e.stdout, view)
	}

	fmt.Fprintf(e.stdout, "%s (%d%%)\n", view.Name, view.Percent)
	for _, t := range view.Topics {
		fmt.Fprintf(e.stdout, "\n%s  %s  %d/%d\n", t.TopicID, t.Title, t.Checked, t.Total)
		for _, st := range t.Subtopics {
			mark := " "
			if st.Checked {
				mark = "x"
			}
			fmt.Fprintf(e.stdout, "  [%s] %d %s\n", mark, st.Index, st.Label)
		}
	}
	return nil
}

func runToggle(_ context.Context, e *env, _ *pflag.FlagSet, args []string) error {
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("index must be a number, got %q", args[2])
	}
	label, err := e.app.Catalog.Subtopic(args[0], args[1], index)
	if err != nil {
		return err
	}

	res := e.app.Tracker.Toggle(progress.Ref{SubjectID: args[0], TopicID: args[1], Index: index})
	verb := "Unchecked"
	if res.Checked {
		verb = "Checked"
	}
	fmt.Fprintf(e.stdout, "%s: %s\nToday (%s): %.2f syllabus days\n", verb, label, res.Date, res.TodayCount)
	return nil
}

func runExport(_ context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	data, err := e.app.Tracker.Export()
	if err != nil {
		return err
	}
	out, _ := fs.GetString("out")
	if out == "-" {
		_, err := e.stdout.Write(append(data, '\n'))
		return err
	}
	if out == "" {
		out = tracker.BackupFilename(time.Now())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	fmt.Fprintf(e.stdout, "Backup written to %s\n", out)
	return nil
}

func runImport(_ context.Context, e *env, _ *pflag.FlagSet, args []string) error {
	data, err := readInput(e, args[0])
	if err != nil {
		return err
	}
	if err := e.app.Tracker.Import(data); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Backup restored.")
	fmt.Fprintln(e.stdout, bot.FormatDashboard(e.app.Tracker.Dashboard()))
	return nil
}

func runReset(_ context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	if yes, _ := fs.GetBool("yes"); !yes {
		return fmt.Errorf("reset deletes all progress; rerun with --yes to confirm")
	}
	if err := e.app.Tracker.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "All progress deleted.")
	return nil
}

func runPapers(_ context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tPAPER I\tPAPER II")
	for _, p := range e.app.Catalog.Papers() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Year, p.Paper1URL, p.Paper2URL)
	}
	return tw.Flush()
}

func runTests(_ context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	papers := e.app.Catalog.Tests()
	if subject, _ := fs.GetString("subject"); subject != "" {
		papers = e.app.Catalog.TestsFor(subject)
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSUBJECT\tDIFFICULTY\tMINUTES\tQUESTIONS")
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", p.ID, p.Title, p.SubjectID, p.Difficulty, p.Duration, len(p.Questions))
	}
	return tw.Flush()
}

func runProblems(_ context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDIFFICULTY\tCASES")
	for _, p := range e.app.Catalog.Problems() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Title, p.Difficulty, len(p.TestCases))
	}
	return tw.Flush()
}

func runArena(ctx context.Context, e *env, _ *pflag.FlagSet, args []string) error {
	problem, ok := e.app.Catalog.GetProblem(args[0])
	if !ok {
		return fmt.Errorf("unknown problem %q", args[0])
	}
	code, err := readInput(e, args[1])
	if err != nil {
		return err
	}

	res := e.app.Arena.Run(ctx, string(code), problem.TestCases)
	if res.Output != "" {
		fmt.Fprintf(e.stdout, "Output:\n%s\n", res.Output)
	}
	if res.Error != "" {
		fmt.Fprintf(e.stdout, "Error: %s\n", res.Error)
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESULT\tINPUT\tEXPECTED\tACTUAL")
	for _, c := range res.Cases {
		status := "FAIL"
		if c.Passed {
			status = "PASS"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", status, c.Input, c.Expected, c.Actual)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !res.Passed {
		fmt.Fprintln(e.stdout, "\nSome test cases failed.")
		return errSilent
	}
	fmt.Fprintln(e.stdout, "\nAll test cases passed!")
	return nil
}

func runReport(_ context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	summary := e.app.Tracker.Dashboard()
	out, _ := fs.GetString("out")
	if out == "" {
		out = report.Filename(summary.Today)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, summary, e.app.Tracker.State().Activity); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(e.stdout, "Report written to %s\n", out)
	return nil
}

func runRemind(ctx context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
	text := bot.Reminder(e.app.Tracker.Dashboard())
	if dry, _ := fs.GetBool("dry-run"); dry {
		fmt.Fprintln(e.stdout, text)
		return nil
	}

	chatID := e.app.Config.Telegram.ChatID
	if chatID == "" {
		return fmt.Errorf("PREP_TELEGRAM_CHAT_ID is required to send reminders")
	}
	gw, err := e.app.Gateway()
	if err != nil {
		return err
	}
	if gw == nil {
		return fmt.Errorf("PREP_TELEGRAM_BOT_TOKEN is required to send reminders")
	}
	if err := gw.Send(ctx, chat.OutboundMessage{
		Channel: app.TelegramChannel,
		UserID:  chatID,
		Text:    text,
	}); err != nil {
		return fmt.Errorf("sending reminder: %w", err)
	}
	fmt.Fprintln(e.stdout, "Reminder sent.")
	return nil
}

// readInput reads a file, or stdin for "-".
func readInput(e *env, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(e.stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
