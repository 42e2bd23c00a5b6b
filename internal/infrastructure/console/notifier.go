package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"NewsDigest/internal/ports"
)

// Notifier prints digests instead of delivering them; used for dry runs.
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
	seq int
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier writes to out, or stdout when out is nil.
func NewNotifier(out io.Writer) *Notifier {
	if out == nil {
		out = os.Stdout
	}
	return &Notifier{out: out}
}

func (n *Notifier) PublishDigest(_ context.Context, text string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	ref := fmt.Sprintf("console-%d", n.seq)
	if _, err := fmt.Fprintf(n.out, "%s\n", text); err != nil {
		return "", fmt.Errorf("write digest: %w", err)
	}
	return ref, nil
}

func (n *Notifier) PublishReply(_ context.Context, ref, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := fmt.Fprintf(n.out, "--- reply to %s ---\n%s\n", ref, text); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
