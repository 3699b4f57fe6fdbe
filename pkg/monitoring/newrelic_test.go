package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutLicense(t *testing.T) {
	app, err := New(Config{Enabled: true, AppName: "rides"})
	require.NoError(t, err)
	assert.False(t, app.IsEnabled())
}

func TestDisabledAppIsNoop(t *testing.T) {
	app, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		app.RideRequested("car", 125, false)
		app.RideTransitioned("accepted")
		app.DriversMatched(3, 10*time.Millisecond)
		app.RecordRedisPoolStats(&redis.PoolStats{Hits: 1})
		app.RecordRedisPoolStats(nil)
		app.ReportRedisPool(context.Background(), nil, time.Second)
		app.Shutdown(time.Second)
	})

	var nilApp *NewRelicApp
	assert.False(t, nilApp.IsEnabled())
}
