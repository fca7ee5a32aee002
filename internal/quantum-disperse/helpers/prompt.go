package helpers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter asks one question at a time on a terminal. Concurrent callers
// queue behind each other.
type Prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

var (
	stdPrompterOnce sync.Once
	stdPrompter     *Prompter
)

// StdPrompter reads stdin and writes to stderr.
func StdPrompter() *Prompter {
	stdPrompterOnce.Do(func() {
		stdPrompter = NewPrompter(os.Stdin, os.Stderr)
	})
	return stdPrompter
}

func (p *Prompter) LineWithDefault(label, def string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return def
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// Confirm asks a yes/no question; anything but y/yes is a no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	answer := strings.ToLower(p.LineWithDefault(question+" (y/N)", "n"))
	return answer == "y" || answer == "yes", nil
}

// ConfirmTransaction shows the transaction summary and asks to sign it.
func (p *Prompter) ConfirmTransaction(ctx context.Context, summary string) (bool, error) {
	return p.Confirm(ctx, "Sign and send: "+summary+"?")
}

func PromptPassword(prompt string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)

	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr) // best-effort newline

	if err != nil {
		ZeroBytes(pw)
		return nil, fmt.Errorf("password input failed: %w", err)
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	return pw, nil
}

// IsTerminal reports whether stdin is interactive.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
