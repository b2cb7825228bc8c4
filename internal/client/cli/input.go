package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// readPassword is replaced in tests so the terminal is never touched.
var readPassword = term.ReadPassword

// prompter asks the questions of interactive commands. Answers are read
// from in, which the REPL shares, and prompts are written to out.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (a *App) ask() prompter {
	return prompter{in: a.reader, out: a.out}
}

// line reads one answer line without its line ending. A final line that
// ends at EOF is still an answer.
func (p prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// lines reads answer lines up to the first empty one or EOF.
func (p prompter) lines() []string {
	var out []string
	for {
		s, err := p.line()
		if err != nil || s == "" {
			return out
		}
		out = append(out, s)
	}
}

// Field asks for a single value, printed as "label: ".
func (p prompter) Field(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", err
	}
	s, err := p.line()
	return strings.TrimSpace(s), err
}

// Required is Field that refuses an empty answer.
func (p prompter) Required(label string) (string, error) {
	s, err := p.Field(label)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%s must not be empty", strings.ToLower(label))
	}
	return s, nil
}

// Paths asks for a comma separated list of files to attach.
func (p prompter) Paths(label string) ([]string, error) {
	s, err := p.Field(label + " (comma separated, optional)")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			paths = append(paths, f)
		}
	}
	return paths, nil
}

// Text asks for free text such as a post description or a comment. It ends
// at the first empty line.
func (p prompter) Text(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s (finish with an empty line):\n", label); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(p.lines(), "\n")), nil
}

// Metrics asks for activity metrics as name=value lines.
func (p prompter) Metrics() (manifest.DerivedMetrics, error) {
	const help = "Metrics, one per line, finish with an empty line:\n" +
		"  distance=<meters>  elevation=<meters>  duration=<1h20m | seconds>\n"
	if _, err := fmt.Fprint(p.out, help); err != nil {
		return manifest.DerivedMetrics{}, err
	}
	return parseMetrics(p.lines())
}

// Password reads the password of user from the terminal without echo. The
// caller wipes the result.
func (p prompter) Password(user string) ([]byte, error) {
	if _, err := fmt.Fprintf(p.out, "Password for %s: ", user); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	return pw, err
}
