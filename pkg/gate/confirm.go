package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer asks whether a described action may proceed.
type Confirmer interface {
	Confirm(description string) bool
}

// AutoConfirmer answers every prompt with its own value. It stands in for the
// console in unattended sessions, where false makes every unforced action a skip.
type AutoConfirmer bool

func (a AutoConfirmer) Confirm(string) bool {
	return bool(a)
}

// ConsoleConfirmer prompts on out and reads y/N from in. Prompts from
// concurrent batch jobs are serialised so questions and answers never interleave.
type ConsoleConfirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm treats anything other than y/yes, including EOF, as a refusal.
func (c *ConsoleConfirmer) Confirm(description string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "Confirm: %s? [y/N] ", description)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(c.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
