// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncBusDropReason_DefaultsLabels(t *testing.T) {
	c := BusDroppedTotal.WithLabelValues("unknown", "unknown")
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	before := m.GetCounter().GetValue()

	IncBusDropReason("", "")

	require.NoError(t, c.Write(m))
	assert.Equal(t, before+1, m.GetCounter().GetValue())
}

func TestHandler_ExposesBuildInfo(t *testing.T) {
	SetBuildInfo("1.2.3")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wxbridge_build_info{version="1.2.3"} 1`)
}
