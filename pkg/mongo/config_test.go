package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/config"
	"github.com/slipverify/notifier/pkg/mongo"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	var cfg mongo.Config
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "notifier", cfg.Database)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.EqualValues(t, 100, cfg.MaxPoolSize)
}

func TestNewWithDatabaseRequiresName(t *testing.T) {
	t.Parallel()

	_, err := mongo.NewWithDatabase(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
	assert.ErrorIs(t, err, mongo.ErrDatabaseRequired)
}

func TestNewStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mongo.New(ctx, mongo.Config{
		ConnectionURL:  "mongodb://127.0.0.1:1",
		ConnectTimeout: 50 * time.Millisecond,
		RetryAttempts:  3,
		RetryInterval:  time.Hour,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, mongo.ErrFailedToConnectToMongo)
}
