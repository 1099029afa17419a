package main

import (
	"context"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/ratelimit"
)

func memoryConfig(t *testing.T) appConfig {
	t.Helper()
	var cfg appConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Storage = storageMemory
	cfg.RateLimit.Store = ratelimit.StoreMemory
	cfg.Broker.Driver = broker.DriverMemory
	cfg.Channels.ChatPushEnabled = true
	return cfg
}

func TestNewApp_MemoryBackends(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Jobs.NoticeChannel = "line"

	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	consumers, err := a.consumers()
	require.NoError(t, err)

	queues := make([]string, 0, len(consumers))
	for _, c := range consumers {
		queues = append(queues, c.Queue())
	}
	assert.ElementsMatch(t, []string{
		broker.NotificationsQueue,
		broker.EmailNotificationsQueue,
		broker.PushNotificationsQueue,
		broker.SlipProcessingQueue,
		broker.ReportsQueue,
	}, queues)
}

func TestNewApp_JobsDisabled(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Jobs.Enabled = false

	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	consumers, err := a.consumers()
	require.NoError(t, err)
	assert.Len(t, consumers, 3)
}

func TestNewApp_InvalidSettings(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Storage = "cassandra"
	_, err := newApp(context.Background(), cfg, logger.Nop())
	require.Error(t, err)

	cfg = memoryConfig(t)
	cfg.Jobs.NoticeChannel = "fax"
	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	_, err = a.consumers()
	require.Error(t, err)
}
