package events

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv_Disabled(t *testing.T) {
	t.Setenv("MINNA_KAFKA_BROKERS", "")
	cfg := ConfigFromEnv()
	require.Empty(t, cfg.Brokers)
	require.Equal(t, "minna.progress", cfg.Topic)
}

func TestConfigFromEnv_ParsesCommaSeparatedBrokers(t *testing.T) {
	t.Setenv("MINNA_KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("MINNA_KAFKA_PROGRESS_TOPIC", "custom.topic")
	cfg := ConfigFromEnv()
	require.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Brokers)
	require.Equal(t, "custom.topic", cfg.Topic)
}

func TestNew_NoBrokersIsANoOpPublisher(t *testing.T) {
	pub, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, pub)
	require.False(t, pub.Enabled())

	// Must not panic on a disabled publisher.
	pub.Publish(Progress{Provider: "slack", Status: "syncing"})
	pub.Close()
}

func TestNilPublisher_IsSafeToUse(t *testing.T) {
	var pub *Publisher
	require.False(t, pub.Enabled())
	pub.Publish(Progress{Provider: "slack"})
	pub.Close()
}

func TestConfigFromEnv_DefaultTopicWhenUnset(t *testing.T) {
	require.NoError(t, os.Unsetenv("MINNA_KAFKA_PROGRESS_TOPIC"))
	cfg := ConfigFromEnv()
	require.Equal(t, "minna.progress", cfg.Topic)
}
