package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlowAuthOperationRaisesAlert(t *testing.T) {
	tracker := NewTracker(nil, &AlertThresholds{
		CriticalResponseThreshold: time.Hour,
		AuthOperationThreshold:    time.Nanosecond,
		PrefetchThreshold:         time.Hour,
		RenderThreshold:           time.Hour,
	})

	marker := tracker.StartOperation("auth_resolution", "req-1")
	time.Sleep(time.Millisecond)
	tracker.CompleteOperation(marker)

	alerts := tracker.GetAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Severity)
	assert.Equal(t, "auth_resolution", alerts[0].Operation)
	assert.Equal(t, "req-1", alerts[0].RequestID)
}

func TestFastOperationRaisesNothing(t *testing.T) {
	tracker := NewTracker(nil, nil)

	marker := tracker.StartOperation("prefetch_route", "req-2")
	tracker.CompleteOperation(marker)

	assert.Empty(t, tracker.GetAlerts())
	assert.Len(t, tracker.GetRecentMetrics(time.Minute), 1)
}

func TestMarkerErrorMarksFailure(t *testing.T) {
	marker := &Marker{Success: true}
	marker.SetError(errors.New("boom"))
	marker.Complete()
	marker.Complete()

	assert.False(t, marker.Success)
	assert.Equal(t, "boom", marker.Error)
	assert.True(t, marker.Completed)
}

func TestCacheHitRatio(t *testing.T) {
	marker := &Marker{}
	assert.Zero(t, marker.GetCacheHitRatio())

	marker.AddCacheHit()
	marker.AddCacheHit()
	marker.AddCacheHit()
	marker.AddCacheMiss()
	assert.InDelta(t, 0.75, marker.GetCacheHitRatio(), 0.0001)
}

func TestCleanupDropsExpiredMarkers(t *testing.T) {
	tracker := NewTracker(&TrackerConfig{MaxMarkers: 10, MaxAlerts: 10, Retention: time.Nanosecond}, nil)

	marker := tracker.StartOperation("render_page", "req-3")
	tracker.CompleteOperation(marker)
	time.Sleep(time.Millisecond)
	tracker.Cleanup()

	assert.Equal(t, 0, tracker.GetOverallStats()["totalMarkers"])
}
