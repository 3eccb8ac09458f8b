package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaugesAndCounters(t *testing.T) {
	require.NoError(t, InitMetrics(""))
	defer Close()

	SetGauge("ws_clients", 3)
	assert.Equal(t, int64(3), Value("ws_clients"))

	base := Value("events_published")
	assert.Equal(t, base+1, Incr("events_published"))
	assert.Equal(t, base+3, Add("events_published", 2))

	snap := Snapshot()
	assert.Equal(t, int64(3), snap["ws_clients"])

	_, err := Series("ws_clients", time.Minute)
	require.NoError(t, err)
}
