package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency and returns nil when it is reachable.
type Probe func(ctx context.Context) error

type namedProbe struct {
	name    string
	probe   Probe
	timeout time.Duration
}

// Monitor periodically probes the configured dependencies and caches the outcome for /health.
type Monitor struct {
	probes []namedProbe

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
		status:   Status{Services: map[string]bool{}},
	}
}

// Add registers a probe. It must be called before Start.
func (m *Monitor) Add(name string, timeout time.Duration, probe Probe) {
	if probe == nil {
		return
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	m.probes = append(m.probes, namedProbe{name: name, probe: probe, timeout: timeout})
	sort.Slice(m.probes, func(i, j int) bool { return m.probes[i].name < m.probes[j].name })
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	services := make(map[string]bool, len(m.status.Services))
	for k, v := range m.status.Services {
		services[k] = v
	}
	return Status{Services: services, LastCheck: m.status.LastCheck}
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the result.
func (m *Monitor) Refresh() {
	status := Status{
		Services:  make(map[string]bool, len(m.probes)),
		LastCheck: time.Now(),
	}
	for _, p := range m.probes {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.probe(ctx)
		cancel()
		if err != nil {
			m.logger.Warn("dependency check failed", zap.String("service", p.name), zap.Error(err))
		}
		status.Services[p.name] = err == nil
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
