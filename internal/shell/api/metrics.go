package api

import (
	"sync/atomic"
	"time"
)

// Metrics tracks service counters for the /metrics endpoint.
type Metrics struct {
	requestsTotal      atomic.Int64
	requestsInProgress atomic.Int64
	detectionsTotal    atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	accepted           atomic.Int64
	rejected           atomic.Int64
}

// NewMetrics creates zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) beginRequest() {
	m.requestsTotal.Add(1)
	m.requestsInProgress.Add(1)
}

func (m *Metrics) endRequest() { m.requestsInProgress.Add(-1) }


func (m *Metrics) recordCacheHit()  { m.cacheHits.Add(1) }
func (m *Metrics) recordCacheMiss() { m.cacheMisses.Add(1) }

func (m *Metrics) recordDetection(rejected bool) {
	m.detectionsTotal.Add(1)
	if rejected {
		m.rejected.Add(1)
	} else {
		m.accepted.Add(1)
	}
}

// snapshot returns the current counter values.
func (m *Metrics) snapshot(cacheEnabled, paramsLoaded bool) MetricsResponse {
	loadStatus := 0
	if paramsLoaded {
		loadStatus = 1
	}
	return MetricsResponse{
		RequestsTotal:      m.requestsTotal.Load(),
		RequestsInProgress: m.requestsInProgress.Load(),
		DetectionsTotal:    m.detectionsTotal.Load(),
		CacheHits:          m.cacheHits.Load(),
		CacheMisses:        m.cacheMisses.Load(),
		Accepted:           m.accepted.Load(),
		Rejected:           m.rejected.Load(),
		ParamsLoadStatus:   loadStatus,
		CacheEnabled:       cacheEnabled,
		Timestamp:          float64(time.Now().UnixMilli()) / 1000,
	}
}
