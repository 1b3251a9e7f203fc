package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Messages.WithLabelValues(OutcomePublished).Inc()
	m.Messages.WithLabelValues(OutcomePublished).Inc()
	m.AuthRejected.WithLabelValues("token").Inc()
	m.ActiveConnections.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues(OutcomePublished)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `interchange_messages_total{outcome="published"} 2`)
	assert.Contains(t, string(body), `interchange_active_connections 3`)
	assert.Contains(t, string(body), `interchange_handshakes_rejected_total{reason="token"} 1`)
}
