package client

import (
	"context"
	"sort"
	"time"

	"github.com/fastygo/classtrack/domain"
)

// Label is the removal countdown of one completed record.
type Label struct {
	Key       domain.StatusKey
	DeleteAt  time.Time
	Remaining time.Duration
	Text      string
	// Expired is set once the record is due for removal.
	Expired bool
}

// Countdown recomputes removal labels on a fixed cadence for display.
type Countdown struct {
	ttl      domain.TTL
	interval time.Duration
	now      func() time.Time
}

func NewCountdown(ttl domain.TTL, interval time.Duration, now func() time.Time) *Countdown {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Countdown{ttl: ttl, interval: interval, now: now}
}

// Labels projects the completed records, soonest removal first.
func (c *Countdown) Labels(records []domain.CompletionRecord) []Label {
	now := c.now()
	labels := make([]Label, 0, len(records))
	for _, rec := range records {
		deleteAt, ok := c.ttl.DeleteAt(rec)
		if !ok {
			continue
		}
		left, _ := c.ttl.Remaining(rec, now)
		labels = append(labels, Label{
			Key:       rec.Key(),
			DeleteAt:  deleteAt,
			Remaining: left,
			Text:      domain.FormatRemaining(left),
			Expired:   c.ttl.Expired(rec, now),
		})
	}
	sort.SliceStable(labels, func(i, j int) bool {
		if !labels[i].DeleteAt.Equal(labels[j].DeleteAt) {
			return labels[i].DeleteAt.Before(labels[j].DeleteAt)
		}
		return labels[i].Key.String() < labels[j].Key.String()
	})
	return labels
}

// Run publishes labels for the current records immediately and then once per interval until
// ctx is done. The channel is closed on return.
func (c *Countdown) Run(ctx context.Context, records func() []domain.CompletionRecord) <-chan []Label {
	out := make(chan []Label, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case out <- c.Labels(records()):
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
