package domain

import (
	"fmt"
	"time"
)

// DefaultCompletionTTL is the window after the last completion before an item may be removed.
const DefaultCompletionTTL = 24 * time.Hour

const RemovalSoonLabel = "will be removed soon"

// TTL projects the removal countdown of completed records. It never deletes anything.
type TTL struct {
	Window time.Duration
}

func NewTTL(window time.Duration) TTL {
	if window <= 0 {
		window = DefaultCompletionTTL
	}
	return TTL{Window: window}
}

// DeleteAt returns the removal eligibility time. ok is false for records that are not completed.
func (t TTL) DeleteAt(rec CompletionRecord) (time.Time, bool) {
	if !rec.IsCompleted || rec.UpdatedAt.IsZero() {
		return time.Time{}, false
	}
	return rec.UpdatedAt.Add(t.window()), true
}

// Remaining returns the time left before removal, never negative.
func (t TTL) Remaining(rec CompletionRecord, now time.Time) (time.Duration, bool) {
	deleteAt, ok := t.DeleteAt(rec)
	if !ok {
		return 0, false
	}
	left := deleteAt.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Expired reports whether a completed record is past its removal time.
func (t TTL) Expired(rec CompletionRecord, now time.Time) bool {
	deleteAt, ok := t.DeleteAt(rec)
	return ok && !deleteAt.After(now)
}

// Label formats the countdown for display, or returns "" for records that are not completed.
func (t TTL) Label(rec CompletionRecord, now time.Time) string {
	left, ok := t.Remaining(rec, now)
	if !ok {
		return ""
	}
	return FormatRemaining(left)
}

func (t TTL) window() time.Duration {
	if t.Window <= 0 {
		return DefaultCompletionTTL
	}
	return t.Window
}

// FormatRemaining renders "Xh Ym left", or RemovalSoonLabel under one minute.
func FormatRemaining(d time.Duration) string {
	if d < time.Minute {
		return RemovalSoonLabel
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm left", hours, minutes)
}
