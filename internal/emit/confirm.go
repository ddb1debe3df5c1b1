package emit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer asks the user whether an existing artifact may be replaced.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// LineConfirmer prompts on Out and reads one line from In; only "y" (or
// "yes") confirms. One buffered reader serves every call, so lines queued
// behind the first answer are kept for later prompts.
type LineConfirmer struct {
	In  io.Reader
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
	// pending is a read left running by a cancelled Confirm.
	pending chan lineAnswer
}

type lineAnswer struct {
	line string
	err  error
}

func (c *LineConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.Out, "%s (y/n)? ", prompt); err != nil {
		return false, err
	}

	ch := c.pending
	c.pending = nil
	if ch == nil {
		if c.reader == nil {
			c.reader = bufio.NewReader(c.In)
		}
		ch = make(chan lineAnswer, 1)
		// The read cannot be interrupted. On cancel the goroutine stays
		// blocked on In, and the line it eventually reads answers the next
		// Confirm.
		go func(r *bufio.Reader) {
			line, err := r.ReadString('\n')
			ch <- lineAnswer{line, err}
		}(c.reader)
	}

	select {
	case <-ctx.Done():
		c.pending = ch
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
