// Package prompt asks an operator which state to load.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
)

// ErrQuit means the operator asked to stop. It is not a failure.
var ErrQuit = errors.New("quit requested")

const (
	question  = `Enter state you want to send a request for, "q" to quit: `
	incorrect = `Incorrect input, please input one of the states below, or "q" to quit:`
)

// LoadChecker reports whether a state already has rows in the database.
type LoadChecker interface {
	IsLoaded(ctx context.Context, stateName string) (bool, error)
}

// Prompter reads answers line by line until it gets a state that is not yet loaded.
type Prompter struct {
	in      *bufio.Scanner
	out     io.Writer
	checker LoadChecker
}

// New returns a Prompter reading from in and writing prompts to out.
func New(in io.Reader, out io.Writer, checker LoadChecker) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out, checker: checker}
}

// Ask loops until the operator names a state that is not loaded yet and
// returns its canonical name. It returns ErrQuit on "q" and io.EOF when
// input ends.
func (p *Prompter) Ask(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(p.out, question)

		if !p.in.Scan() {
			fmt.Fprintln(p.out)
			if err := p.in.Err(); err != nil {
				return "", fmt.Errorf("read answer: %w", err)
			}
			return "", io.EOF
		}
		answer := strings.ToLower(strings.TrimSpace(p.in.Text()))

		if answer == "q" {
			fmt.Fprintln(p.out, "Quitting program.")
			return "", ErrQuit
		}

		code, ok := domain.StateCode(answer)
		if !ok {
			fmt.Fprintln(p.out, incorrect)
			fmt.Fprintln(p.out, strings.ToLower(strings.Join(domain.StateNames(), ", ")))
			continue
		}
		name, _ := domain.StateName(code)

		loaded, err := p.checker.IsLoaded(ctx, name)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
		if loaded {
			fmt.Fprintf(p.out, "Data for %s is already in the database.\n", name)
			continue
		}
		return name, nil
	}
}
