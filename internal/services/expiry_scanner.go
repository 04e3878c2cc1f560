package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiredCounter counts completed records last updated at or before cutoff.
type ExpiredCounter interface {
	CountExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// ScannerConfig controls how often completed records are checked against their deadline.
type ScannerConfig struct {
	Schedule string
	TTL      time.Duration
	Timeout  time.Duration
}

// ScanStats is the outcome of the most recent scan.
type ScanStats struct {
	Expired  int       `json:"expired"`
	Cutoff   time.Time `json:"cutoff"`
	LastScan time.Time `json:"last_scan"`
	Error    string    `json:"error,omitempty"`
}

// ExpiryScanner periodically counts completed records whose removal deadline has passed.
// It never deletes anything: clients hide expired items on their own.
type ExpiryScanner struct {
	store  ExpiredCounter
	cfg    ScannerConfig
	now    func() time.Time
	logger *zap.Logger
	cron   *cron.Cron

	mu    sync.RWMutex
	stats ScanStats
}

func NewExpiryScanner(store ExpiredCounter, cfg ScannerConfig, now func() time.Time, logger *zap.Logger) (*ExpiryScanner, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ExpiryScanner{
		store:  store,
		cfg:    cfg,
		now:    now,
		logger: logger,
		cron:   cron.New(cron.WithSeconds()),
	}

	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if _, err := s.Scan(ctx); err != nil {
			s.logger.Error("expiry scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron scheduler.
func (s *ExpiryScanner) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("expiry scanner started", zap.String("schedule", s.cfg.Schedule))
}

// Stop waits for a running scan to finish or ctx to expire.
func (s *ExpiryScanner) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("expiry scanner stopped")
}

// Scan counts the records past their deadline now and stores the result.
func (s *ExpiryScanner) Scan(ctx context.Context) (ScanStats, error) {
	now := s.now()
	stats := ScanStats{Cutoff: now.Add(-s.cfg.TTL), LastScan: now}

	count, err := s.store.CountExpired(ctx, stats.Cutoff)
	if err != nil {
		stats.Error = err.Error()
	} else {
		stats.Expired = count
		s.logger.Debug("expiry scan finished", zap.Int("expired", count), zap.Time("cutoff", stats.Cutoff))
	}

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	return stats, err
}

func (s *ExpiryScanner) Stats() ScanStats {
	if s == nil {
		return ScanStats{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
