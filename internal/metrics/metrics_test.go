package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shakeout/internal/ops"
	"shakeout/internal/stats"
)

func TestRegistry_Observe(t *testing.T) {
	r := New()

	r.Observe(stats.Sample{Operation: "create_item", Duration: 20 * time.Millisecond, Succeeded: true})
	r.Observe(stats.Sample{Operation: "create_item", Duration: 30 * time.Millisecond, Succeeded: true})
	r.Observe(stats.Sample{Operation: "upload_file", Duration: time.Second, ErrorKind: ops.KindTimeout})

	assert.Equal(t, float64(2), testutil.ToFloat64(r.requestsTotal.WithLabelValues("create_item", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.requestsTotal.WithLabelValues("upload_file", OutcomeFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.errorsTotal.WithLabelValues("timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.requestDuration))
}

func TestRegistry_RecordRetry(t *testing.T) {
	r := New()
	r.RecordRetry("datastore")
	r.RecordRetry("datastore")
	r.RecordRetry("identity")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.retriesTotal.WithLabelValues("datastore")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retriesTotal.WithLabelValues("identity")))
}

func TestRegistry_Isolated(t *testing.T) {
	a, b := New(), New()
	a.RecordRetry("inference")

	assert.Equal(t, float64(0), testutil.ToFloat64(b.retriesTotal.WithLabelValues("inference")))
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.Observe(stats.Sample{Operation: "move_item", Duration: time.Millisecond, Succeeded: true})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `shakeout_requests_total{operation="move_item",outcome="success"} 1`)
}

func TestRegistry_Gatherer(t *testing.T) {
	r := New()
	r.RecordRetry("file_transfer")
	r.Observe(stats.Sample{Operation: "upload_file", Duration: time.Millisecond, ErrorKind: ops.KindConnectionLoss})

	n, err := testutil.GatherAndCount(r.Gatherer(), "shakeout_retries_total", "shakeout_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
