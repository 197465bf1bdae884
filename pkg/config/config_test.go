package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	assert.Equal(t, 10000.0, c.Trading.Capital)
	assert.Equal(t, 1.3, c.Trading.SigmaMultiplier)
	assert.Equal(t, "Europe/Madrid", c.Trading.Timezone)
	assert.Equal(t, "yahoo", c.MarketData.Backend)
	assert.Equal(t, 15*time.Minute, c.Calendar.CacheTTL)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "zerodte.analysis.results", c.Kafka.Topics.Results)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
trading:
  capital: 50000
  sigma_multiplier: 1.5
  timezone: America/New_York
market_data:
  backend: clickhouse
`))
	require.NoError(t, err)
	assert.Equal(t, 50000.0, c.Trading.Capital)
	assert.Equal(t, 1.5, c.Trading.SigmaMultiplier)
	assert.Equal(t, "clickhouse", c.MarketData.Backend)
	loc, err := c.Trading.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"sigma outside set": "trading:\n  sigma_multiplier: 1.2\n",
		"negative capital":  "trading:\n  capital: -5\n",
		"unknown backend":   "market_data:\n  backend: bloomberg\n",
		"bad timezone":      "trading:\n  timezone: Mars/Olympus\n",
		"kafka w/o brokers": "kafka:\n  enabled: true\n",
		"stream w/o key":    "finnhub:\n  stream_enabled: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	env := map[string]string{
		"FINNHUB_API_KEY":  "secret",
		"TRADING_CAPITAL":  "25000",
		"SIGMA_MULTIPLIER": "1.1",
		"KAFKA_BROKERS":    "k1:9092, k2:9092",
		"HTTP_PORT":        "not-a-port",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "secret", c.Finnhub.APIKey)
	assert.Equal(t, 25000.0, c.Trading.Capital)
	assert.Equal(t, 1.1, c.Trading.SigmaMultiplier)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, 8080, c.Server.Port)
	assert.NoError(t, c.Validate())
}

func TestValidSigmaMultiplier(t *testing.T) {
	assert.True(t, ValidSigmaMultiplier(1.3))
	assert.False(t, ValidSigmaMultiplier(2))
}
