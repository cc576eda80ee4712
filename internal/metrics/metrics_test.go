package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"venuehours/internal/hours"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("2025-06-02 operating_hours: open: %w", hours.ErrInvalidTime), want: "invalid_time"},
		{err: hours.ErrInvalidInterval, want: "invalid_interval"},
		{err: fmt.Errorf("rule %q: %w", "x", hours.ErrInvalidDate), want: "invalid_date"},
		{err: errors.Join(errors.New("a"), hours.ErrInvalidRule), want: "invalid_rule"},
		{err: errors.New("disk full"), want: "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), tt.err.Error())
	}
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(statusEvaluations.WithLabelValues("open"))
	IncStatus(true)
	assert.Equal(t, before+1, testutil.ToFloat64(statusEvaluations.WithLabelValues("open")))

	before = testutil.ToFloat64(dataQualityErrors.WithLabelValues("invalid_time"))
	IncDataQuality(hours.ErrInvalidTime)
	IncDataQuality(nil)
	assert.Equal(t, before+1, testutil.ToFloat64(dataQualityErrors.WithLabelValues("invalid_time")))

	before = testutil.ToFloat64(statusCache.WithLabelValues("miss"))
	IncCache(false)
	assert.Equal(t, before+1, testutil.ToFloat64(statusCache.WithLabelValues("miss")))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("status"))
	IncHTTP("status")
	ObserveHTTP("status", time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("status")))

	before = testutil.ToFloat64(configReloads.WithLabelValues("error"))
	IncConfigReload(false)
	assert.Equal(t, before+1, testutil.ToFloat64(configReloads.WithLabelValues("error")))
}
