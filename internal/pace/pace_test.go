package pace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/pace"
)

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, pace.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	require.NoError(t, pace.Sleep(context.Background(), 0))
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, pace.Sleep(ctx, time.Hour), context.Canceled)
}

func TestRecorder(t *testing.T) {
	var r pace.Recorder
	_ = r.Sleep(context.Background(), time.Second)
	_ = r.Sleep(context.Background(), 2*time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, r.Delays)
}
