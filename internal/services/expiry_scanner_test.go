package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterFunc func(ctx context.Context, cutoff time.Time) (int, error)

func (f counterFunc) CountExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return f(ctx, cutoff)
}

func TestExpiryScannerScan(t *testing.T) {
	now := time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC)
	var gotCutoff time.Time
	store := counterFunc(func(_ context.Context, cutoff time.Time) (int, error) {
		gotCutoff = cutoff
		return 4, nil
	})

	s, err := NewExpiryScanner(store, ScannerConfig{TTL: 24 * time.Hour}, func() time.Time { return now }, nil)
	require.NoError(t, err)

	stats, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), gotCutoff)
	assert.Equal(t, 4, stats.Expired)
	assert.Equal(t, stats, s.Stats())
}

func TestExpiryScannerRecordsFailure(t *testing.T) {
	store := counterFunc(func(context.Context, time.Time) (int, error) {
		return 0, errors.New("store offline")
	})
	s, err := NewExpiryScanner(store, ScannerConfig{}, nil, nil)
	require.NoError(t, err)

	_, err = s.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store offline", s.Stats().Error)
}

func TestExpiryScannerRejectsBadSchedule(t *testing.T) {
	_, err := NewExpiryScanner(counterFunc(nil), ScannerConfig{Schedule: "every now and then"}, nil, nil)
	assert.Error(t, err)
}

func TestExpiryScannerRunsOnSchedule(t *testing.T) {
	calls := make(chan struct{}, 4)
	store := counterFunc(func(context.Context, time.Time) (int, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return 1, nil
	})
	s, err := NewExpiryScanner(store, ScannerConfig{Schedule: "@every 1s"}, nil, nil)
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("scanner never ran")
	}
}
