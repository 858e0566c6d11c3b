package invoice

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Sequence hands out strictly increasing numbers.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// LocalSequence is a process-local counter used when no Redis is configured.
type LocalSequence struct {
	n atomic.Int64
}

func (s *LocalSequence) Next(_ context.Context) (int64, error) {
	return s.n.Add(1), nil
}

// Numberer formats invoice numbers as PREFIX-YYYYMMDD-NNNNNN.
type Numberer struct {
	seq    Sequence
	prefix string
	now    func() time.Time
	loc    *time.Location
}

type Option func(*Numberer)

// WithClock sets the clock Next uses to date invoice numbers.
func WithClock(now func() time.Time) Option {
	return func(n *Numberer) { n.now = now }
}

func NewNumberer(seq Sequence, prefix string, loc *time.Location, opts ...Option) *Numberer {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "INV"
	}
	if loc == nil {
		loc = time.UTC
	}
	n := &Numberer{seq: seq, prefix: prefix, now: time.Now, loc: loc}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Numberer) Next(ctx context.Context) (string, error) {
	return n.NextAt(ctx, n.now())
}

// NextAt numbers an invoice dated at, in the numberer's timezone.
func (n *Numberer) NextAt(ctx context.Context, at time.Time) (string, error) {
	seq, err := n.seq.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("next invoice sequence: %w", err)
	}
	return Format(n.prefix, at.In(n.loc), seq), nil
}

func Format(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, at.Format("20060102"), seq)
}
