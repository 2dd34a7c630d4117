// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Operations(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordOperation("register", "success")
	m.RecordOperation("register", "success")
	m.RecordOperation("register", "conflict")

	assert.InDelta(t, 2, testutil.ToFloat64(m.Operations.WithLabelValues("register", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Operations.WithLabelValues("register", "conflict")), 0)
}

func TestMetrics_PasswordHash(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObservePasswordHash("verify", 40*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.PasswordHash, "fokus_password_hash_seconds"))
}

func TestMetrics_InstrumentHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/signup", nil))

	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("201", "post")), 0)
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
