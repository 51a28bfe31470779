package chamois

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chamois-host/pkg/config"
)

func chamoisSection(t *testing.T, data string) *config.Section {
	t.Helper()
	cfg, err := config.LoadString(data)
	require.NoError(t, err)
	sec, err := cfg.GetSection("chamois")
	require.NoError(t, err)
	return sec
}

func TestLoadConfigDefaults(t *testing.T) {
	sec := chamoisSection(t, `
[chamois]
tcp_address: 192.168.7.20
`)
	cfg, link, err := LoadConfig(sec)
	require.NoError(t, err)

	assert.Equal(t, "192.168.7.20:5433", link.Address)
	assert.Equal(t, 5*time.Second, link.ConnectTimeout)
	assert.Equal(t, 5*time.Second, link.ReadTimeout)
	assert.Equal(t, 4, cfg.Slots)
	assert.Equal(t, 30, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.Keepalive)
}

func TestLoadConfigOverrides(t *testing.T) {
	sec := chamoisSection(t, `
[chamois]
tcp_address: mmu.local
tcp_port: 6000
number_of_toolhead: 8
connect_timeout: 2.5
read_timeout: 1.0
max_retries: 12
poll_interval: 0.05
mmu_keepalive: 3
`)
	cfg, link, err := LoadConfig(sec)
	require.NoError(t, err)

	assert.Equal(t, "mmu.local:6000", link.Address)
	assert.Equal(t, 2500*time.Millisecond, link.ConnectTimeout)
	assert.Equal(t, time.Second, link.ReadTimeout)
	assert.Equal(t, 8, cfg.Slots)
	assert.Equal(t, 12, cfg.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Keepalive)
}

func TestLoadConfigRequiresAddress(t *testing.T) {
	sec := chamoisSection(t, `
[chamois]
tcp_port: 5433
`)
	_, _, err := LoadConfig(sec)
	require.Error(t, err)
}

func TestLoadConfigRejectsSlotCount(t *testing.T) {
	sec := chamoisSection(t, `
[chamois]
tcp_address: 10.0.0.1
number_of_toolhead: 21
`)
	_, _, err := LoadConfig(sec)
	require.Error(t, err)
}
