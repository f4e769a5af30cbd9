// Package performance provides performance tracking and monitoring capabilities
// for spabook request handling.
package performance

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Tracker manages performance markers and raises alerts for slow operations
type Tracker struct {
	markers    map[string]*Marker
	alerts     []*PerformanceAlert
	thresholds *AlertThresholds
	config     *TrackerConfig
	started    time.Time
	seq        uint64
	mu         sync.RWMutex
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int           `json:"maxMarkers"`
	MaxAlerts    int           `json:"maxAlerts"`
	Retention    time.Duration `json:"retention"`
	EnableAlerts bool          `json:"enableAlerts"`
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   10000,
		MaxAlerts:    500,
		Retention:    time.Hour,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"`
	AuthOperationThreshold    time.Duration `json:"authOperationThreshold"`
	PrefetchThreshold         time.Duration `json:"prefetchThreshold"`
	RenderThreshold           time.Duration `json:"renderThreshold"`
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		CriticalResponseThreshold: 5 * time.Second,
		AuthOperationThreshold:    200 * time.Millisecond,
		PrefetchThreshold:         500 * time.Millisecond,
		RenderThreshold:           100 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig, thresholds *AlertThresholds) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if thresholds == nil {
		thresholds = DefaultAlertThresholds()
	}

	return &Tracker{
		markers:    make(map[string]*Marker),
		alerts:     make([]*PerformanceAlert, 0),
		thresholds: thresholds,
		config:     config,
		started:    time.Now(),
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, requestID string) *Marker {
	marker := &Marker{
		Operation: operation,
		RequestID: requestID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true,
	}

	t.mu.Lock()
	t.seq++
	t.markers[fmt.Sprintf("%s_%s_%d", requestID, operation, t.seq)] = marker
	if len(t.markers) > t.config.MaxMarkers {
		t.pruneLocked(time.Now().Add(-t.config.Retention))
	}
	t.mu.Unlock()

	return marker
}

// CompleteOperation completes a marker and checks it against alert thresholds
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}

	marker.Complete()

	if t.config.EnableAlerts {
		t.checkForAlerts(marker)
	}
}

func (t *Tracker) checkForAlerts(marker *Marker) {
	alerts := t.evaluateThresholds(marker)
	if len(alerts) == 0 {
		return
	}

	t.mu.Lock()
	t.alerts = append(t.alerts, alerts...)
	if len(t.alerts) > t.config.MaxAlerts {
		t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
	}
	t.mu.Unlock()
}

func (t *Tracker) evaluateThresholds(marker *Marker) []*PerformanceAlert {
	var alerts []*PerformanceAlert

	if marker.Duration > t.thresholds.CriticalResponseThreshold {
		alerts = append(alerts, t.createAlert(marker, AlertCritical, t.thresholds.CriticalResponseThreshold,
			"Operation exceeded critical response time threshold"))
	}

	switch {
	case strings.Contains(marker.Operation, "auth"):
		if marker.Duration > t.thresholds.AuthOperationThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning, t.thresholds.AuthOperationThreshold,
				"Authentication operation exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "prefetch"):
		if marker.Duration > t.thresholds.PrefetchThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning, t.thresholds.PrefetchThreshold,
				"Prefetch exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "render"):
		if marker.Duration > t.thresholds.RenderThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning, t.thresholds.RenderThreshold,
				"Render exceeded threshold"))
		}
	}

	return alerts
}

func (t *Tracker) createAlert(marker *Marker, severity AlertSeverity, threshold time.Duration, message string) *PerformanceAlert {
	return &PerformanceAlert{
		Timestamp: time.Now(),
		RequestID: marker.RequestID,
		Severity:  severity,
		Operation: marker.Operation,
		Threshold: threshold,
		Actual:    marker.Duration,
		Message:   message,
	}
}

// GetRecentMetrics returns markers completed within the given window
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var metrics []Marker
	for _, marker := range t.markers {
		if marker.Completed && marker.EndTime.After(cutoff) {
			metrics = append(metrics, *marker)
		}
	}
	return metrics
}

// GetAlerts returns a copy of the retained alerts
func (t *Tracker) GetAlerts() []*PerformanceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*PerformanceAlert, len(t.alerts))
	copy(out, t.alerts)
	return out
}

// Cleanup removes completed markers older than the retention window
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(time.Now().Add(-t.config.Retention))
}

func (t *Tracker) pruneLocked(cutoff time.Time) {
	for id, marker := range t.markers {
		if marker.Completed && marker.EndTime.Before(cutoff) {
			delete(t.markers, id)
		}
	}
}

// GetOverallStats returns overall tracker statistics
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active, completed := 0, 0
	for _, marker := range t.markers {
		if marker.Completed {
			completed++
		} else {
			active++
		}
	}

	return map[string]any{
		"trackerUptime":       time.Since(t.started).String(),
		"totalMarkers":        len(t.markers),
		"activeOperations":    active,
		"completedOperations": completed,
		"totalAlerts":         len(t.alerts),
	}
}
