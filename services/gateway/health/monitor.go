// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package health polls dependent services on a fixed interval and
// aggregates their status for GET /health.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

// ServiceStatus is one service's probe verdict.
type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusDegraded  ServiceStatus = "degraded"
	StatusUnhealthy ServiceStatus = "unhealthy"
)

// Alert and recovery thresholds on consecutive probe outcomes.
const (
	alertFailureThreshold    = 3
	recoverySuccessThreshold = 5
	defaultPollInterval      = 30 * time.Second
	defaultProbeTimeout      = 5 * time.Second
)

// Probe checks one service. A nil error with degraded=false is healthy.
type Probe func(ctx context.Context) (degraded bool, err error)

// ServiceConfig describes one monitored service: either a health URL or
// a custom probe closure.
type ServiceConfig struct {
	Name            string
	URL             string // HTTP 2xx healthy, 207 degraded, else unhealthy
	Probe           Probe  // used when URL is empty
	CriticalLatency time.Duration // latency at/over this alerts regardless
}

// ServiceRecord is the mutable per-service state.
type ServiceRecord struct {
	Name                 string        `json:"name"`
	Status               ServiceStatus `json:"status"`
	ConsecutiveFailures  int           `json:"consecutiveFailures"`
	ConsecutiveSuccesses int           `json:"consecutiveSuccesses"`
	LastLatencyMillis    int64         `json:"lastLatencyMillis"`
	LastHTTPStatus       int           `json:"lastHttpStatus,omitempty"`
	LastError            string        `json:"lastError,omitempty"`
	LastChecked          time.Time     `json:"lastChecked"`
	Alerting             bool          `json:"alerting"`
}

// Report is the aggregated snapshot served by GET /health.
type Report struct {
	Status    ServiceStatus   `json:"status"`
	Services  []ServiceRecord `json:"services"`
	Timestamp time.Time       `json:"timestamp"`
}

// HTTPStatus maps the aggregate status to its response code.
func (r Report) HTTPStatus() int {
	switch r.Status {
	case StatusHealthy:
		return http.StatusOK
	case StatusDegraded:
		return http.StatusMultiStatus
	default:
		return http.StatusServiceUnavailable
	}
}

// Monitor polls all configured services and keeps the latest records.
type Monitor struct {
	services []ServiceConfig
	interval time.Duration
	client   *http.Client
	store    store.Store
	logger   *slog.Logger

	onAlert    func(services []string)
	onRecovery func(services []string)

	mu      sync.RWMutex
	records map[string]*ServiceRecord

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the default 30-second poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithAlertCallback registers a callback fired with the names of
// services that crossed the alert threshold this poll.
func WithAlertCallback(fn func(services []string)) Option {
	return func(m *Monitor) { m.onAlert = fn }
}

// WithRecoveryCallback registers a callback fired with the names of
// services that recovered this poll.
func WithRecoveryCallback(fn func(services []string)) Option {
	return func(m *Monitor) { m.onRecovery = fn }
}

// NewMonitor creates a monitor over the given services. History
// snapshots are persisted through st; pass nil to disable history.
func NewMonitor(services []ServiceConfig, st store.Store, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		services: services,
		interval: defaultPollInterval,
		client:   &http.Client{Timeout: defaultProbeTimeout},
		store:    st,
		logger:   logger,
		records:  make(map[string]*ServiceRecord),
	}
	for _, svc := range services {
		m.records[svc.Name] = &ServiceRecord{Name: svc.Name, Status: StatusUnhealthy}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the polling loop. An immediate first poll runs before
// the ticker so /health is meaningful right after boot.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.pollAll(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.pollAll(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Report returns the current aggregated snapshot. Overall status is
// healthy iff all services are healthy, unhealthy if any service is
// unhealthy, degraded otherwise.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Services:  make([]ServiceRecord, 0, len(m.services)),
		Timestamp: time.Now().UTC(),
	}
	for _, svc := range m.services {
		rec := *m.records[svc.Name]
		report.Services = append(report.Services, rec)
		switch rec.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// pollAll probes every service, fires callbacks for threshold
// crossings, and persists a history snapshot.
func (m *Monitor) pollAll(ctx context.Context) {
	var alerted, recovered []string

	var wg sync.WaitGroup
	results := make([]ServiceRecord, len(m.services))
	for i, svc := range m.services {
		wg.Add(1)
		go func(i int, svc ServiceConfig) {
			defer wg.Done()
			results[i] = m.probe(ctx, svc)
		}(i, svc)
	}
	wg.Wait()

	m.mu.Lock()
	for i, svc := range m.services {
		outcome := results[i]
		rec := m.records[svc.Name]
		rec.Status = outcome.Status
		rec.LastLatencyMillis = outcome.LastLatencyMillis
		rec.LastHTTPStatus = outcome.LastHTTPStatus
		rec.LastError = outcome.LastError
		rec.LastChecked = outcome.LastChecked

		latencyCritical := svc.CriticalLatency > 0 &&
			time.Duration(outcome.LastLatencyMillis)*time.Millisecond >= svc.CriticalLatency

		if outcome.Status == StatusUnhealthy {
			rec.ConsecutiveFailures++
			rec.ConsecutiveSuccesses = 0
		} else {
			rec.ConsecutiveFailures = 0
			rec.ConsecutiveSuccesses++
		}

		shouldAlert := rec.ConsecutiveFailures >= alertFailureThreshold || latencyCritical
		if shouldAlert && !rec.Alerting {
			rec.Alerting = true
			alerted = append(alerted, svc.Name)
		}
		if rec.Alerting && rec.ConsecutiveSuccesses >= recoverySuccessThreshold && !latencyCritical {
			rec.Alerting = false
			recovered = append(recovered, svc.Name)
		}
	}
	m.mu.Unlock()

	if len(alerted) > 0 {
		m.logger.Warn("Health alert", "services", alerted)
		if m.onAlert != nil {
			m.onAlert(alerted)
		}
	}
	if len(recovered) > 0 {
		m.logger.Info("Health recovery", "services", recovered)
		if m.onRecovery != nil {
			m.onRecovery(recovered)
		}
	}

	m.saveHistory(ctx)
}

// probe runs one service check and returns the observed record fields.
func (m *Monitor) probe(ctx context.Context, svc ServiceConfig) ServiceRecord {
	rec := ServiceRecord{Name: svc.Name, LastChecked: time.Now().UTC()}
	start := time.Now()

	if svc.URL != "" {
		rec.Status, rec.LastHTTPStatus, rec.LastError = m.probeURL(ctx, svc.URL)
	} else if svc.Probe != nil {
		degraded, err := svc.Probe(ctx)
		switch {
		case err != nil:
			rec.Status = StatusUnhealthy
			rec.LastError = err.Error()
		case degraded:
			rec.Status = StatusDegraded
		default:
			rec.Status = StatusHealthy
		}
	} else {
		rec.Status = StatusUnhealthy
		rec.LastError = "no probe configured"
	}

	rec.LastLatencyMillis = time.Since(start).Milliseconds()
	return rec
}

func (m *Monitor) probeURL(ctx context.Context, url string) (ServiceStatus, int, string) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return StatusUnhealthy, 0, err.Error()
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return StatusUnhealthy, 0, err.Error()
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMultiStatus:
		return StatusDegraded, resp.StatusCode, ""
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return StatusHealthy, resp.StatusCode, ""
	default:
		return StatusUnhealthy, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
}

func (m *Monitor) saveHistory(ctx context.Context) {
	if m.store == nil {
		return
	}
	report := m.Report()
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.store.SaveHealthSnapshot(saveCtx, report.Timestamp, data); err != nil {
		m.logger.Debug("Failed to persist health snapshot", "error", err)
	}
}
