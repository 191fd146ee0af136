// Package prompt holds the small interactive stdin helpers.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// MaxAttempts bounds how often an invalid answer re-prompts before giving up.
const MaxAttempts = 5

// ErrTooManyAttempts is returned when the user never gives a valid answer.
var ErrTooManyAttempts = pkgerrors.New("too many invalid answers")

// AskYesNo prints question to w and reads answers from r until it gets a
// literal "y" or "n". Invalid input re-prompts, up to MaxAttempts times.
func AskYesNo(r io.Reader, w io.Writer, question string) (bool, error) {
	scanner := bufio.NewScanner(r)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		fmt.Fprintf(w, "%s (y/n): ", question)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, pkgerrors.Wrap(err, "failed to read answer")
			}
			return false, pkgerrors.New("input closed before a valid answer")
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}

		fmt.Fprintln(w, "Please answer 'y' or 'n'")
	}

	return false, ErrTooManyAttempts
}

// ParseYesNo validates a non-interactive y/n answer, as passed on the
// command line to pre-answer a prompt.
func ParseYesNo(s string) (bool, error) {
	switch s {
	case "y":
		return true, nil
	case "n":
		return false, nil
	default:
		return false, pkgerrors.Errorf("invalid answer %q, use 'y' or 'n'", s)
	}
}
