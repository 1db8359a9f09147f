package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

var errInputClosed = errors.New("input closed")

// prompter reads answers from a line-oriented terminal
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", errInputClosed
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label + " [Y/n]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// run drives one attempt from loading to a scored outcome
func run(ctx context.Context, c *quiz.Controller, p *prompter) (*quiz.Outcome, error) {
	for {
		err := c.Start(ctx)
		if err == nil {
			break
		}
		fmt.Fprintf(p.out, "Could not load the quiz: %v\n", err)
		retry, perr := p.confirm("Try again?")
		if perr != nil {
			return nil, perr
		}
		if !retry {
			return nil, err
		}
	}

	if skipped := c.Diagnostics(); len(skipped) > 0 {
		fmt.Fprintf(p.out, "%d question(s) could not be shown and were skipped.\n", len(skipped))
	}

	if err := fillForm(c.Form(), c.Tasks(), p); err != nil {
		return nil, err
	}

	for {
		outcome, err := c.Submit(ctx)
		if err == nil || errors.Is(err, quiz.ErrNoQuestionsAnswered) {
			return outcome, err
		}

		switch quiz.KindOf(err) {
		case quiz.ValidationFailure:
			fmt.Fprintf(p.out, "Some answers are missing or invalid: %v\n", err)
			if err := fillForm(c.Form(), c.Tasks(), p); err != nil {
				return nil, err
			}
		case quiz.SubmitFailure, quiz.Timeout:
			fmt.Fprintf(p.out, "Could not submit answers: %v\n", err)
			retry, perr := p.confirm("Try again?")
			if perr != nil {
				return nil, perr
			}
			if !retry {
				return nil, err
			}
		default:
			return nil, err
		}
	}
}

// fillForm asks for every entry in presentation order
func fillForm(form *quiz.FormModel, tasks []quiz.Task, p *prompter) error {
	entries := form.Entries()
	for i, e := range entries {
		task := tasks[e.Index]
		fmt.Fprintf(p.out, "\n[%d/%d] %s\n", i+1, len(entries), task.Question.Value)

		value, err := askValue(task, p)
		if err != nil {
			return err
		}
		if err := form.SetAt(e.Index, value); err != nil {
			return err
		}
	}
	return nil
}

func askValue(task quiz.Task, p *prompter) (quiz.FormValue, error) {
	switch task.Type {
	case quiz.TypeTrueFalse:
		v, err := p.ask("true/false: ")
		return quiz.SingleValue{Value: strings.ToLower(v)}, err

	case quiz.TypeOneFromFour:
		printOptions(p.out, task.Question.Options)
		v, err := p.ask("option: ")
		return quiz.SingleValue{Value: pickOption(task.Question.Options, v)}, err

	case quiz.TypeNFromFour:
		printOptions(p.out, task.Question.Options)
		v, err := p.ask("options (comma separated): ")
		if err != nil {
			return nil, err
		}
		var selected []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				selected = append(selected, pickOption(task.Question.Options, part))
			}
		}
		return quiz.MultiValue{Selected: selected}, nil

	case quiz.TypeInterval:
		from, err := p.ask("from: ")
		if err != nil {
			return nil, err
		}
		to, err := p.ask("to: ")
		return quiz.RangeValue{From: from, To: to}, err

	default:
		v, err := p.ask("answer: ")
		return quiz.SingleValue{Value: v}, err
	}
}

func printOptions(out io.Writer, options []string) {
	for i, o := range options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, o)
	}
}

// pickOption maps a 1-based option number to its text; anything else is taken verbatim
func pickOption(options []string, input string) string {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return input
}

func printOutcome(out io.Writer, outcome *quiz.Outcome) {
	fmt.Fprintf(out, "\nScore: %s\n", outcome.Score)
	for _, line := range outcome.Breakdown {
		fmt.Fprintf(out, "  %-6.2f %s\n", line.Mark, line.Question)
	}
	if n := len(outcome.Dropped); n > 0 {
		fmt.Fprintf(out, "%d question(s) were skipped or could not be scored.\n", n)
	}
}
