package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"contentchain/storage"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const tomlConfig = `
env = "dev"
listen = ":9000"

[state]
backend = "leveldb"

[keeper]
interval = "30s"

[registry]
quote_token = "0x00000000000000000000000000000000000000e2"
min_quote_for_launch = "100_000_000"

[[tokens]]
address = "0x00000000000000000000000000000000000000e2"
name = "USD Coin"
symbol = "USDC"
decimals = 6
[tokens.balances]
"0x0000000000000000000000000000000000000a11" = "1000000000"

[[channels]]
launcher = "0x0000000000000000000000000000000000000a11"
name = "Channel"
symbol = "CHAN"
quote_amount = "500000000"
unit_amount = "1000000000000000000000000"
initial_rate = "4000000000000000000"
floor_rate = "500000000000000000"
halving_period = "168h"
floor_price = "1000000"
epoch_period = "24h"
auction_init_price = "1000000000000000"
auction_epoch_period = "24h"
auction_price_multiplier = "1200000000000000000"
auction_min_init_price = "1000000"
`

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "channeld.toml", tomlConfig))
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, storage.BackendLevelDB, cfg.State.Backend)
	require.Equal(t, 30*time.Second, cfg.Keeper.Interval.Duration)
	require.Equal(t, filepath.Join(cfg.DataDir, "events.sqlite"), cfg.EventLog.DSN)

	_, regCfg, err := cfg.Registry.Resolve()
	require.NoError(t, err)
	require.Equal(t, int64(100_000_000), regCfg.MinQuoteForLaunch.Int64())

	meta, balances, err := cfg.Tokens[0].Token()
	require.NoError(t, err)
	require.Equal(t, uint8(6), meta.Decimals)
	require.Equal(t, int64(1_000_000_000), balances[common.HexToAddress("0x0000000000000000000000000000000000000a11")].Int64())

	params, err := cfg.Channels[0].LaunchParams()
	require.NoError(t, err)
	require.Equal(t, int64(7*24*60*60), params.HalvingPeriod)
	require.Equal(t, int64(24*60*60), params.AuctionEpochPeriod)
	require.Equal(t, "1200000000000000000", params.AuctionPriceMultiplier.String())
}

func TestLoadYAMLAndJSON(t *testing.T) {
	yamlPath := writeFile(t, "channeld.yaml", "listen: \":7000\"\nkeeper:\n  interval: 5m\nrate_limit:\n  rps: 2\n  burst: 4\n")
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.Keeper.Interval.Duration)
	require.Equal(t, 4, cfg.RateLimit.Burst)
	require.Equal(t, storage.BackendMemory, cfg.State.Backend)

	jsonPath := writeFile(t, "channeld.json", `{"listen":":7001","keeper":{"interval":"10s"},"state":{"backend":"bolt"}}`)
	cfg, err = Load(jsonPath)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.Keeper.Interval.Duration)
	require.Equal(t, storage.BackendBolt, cfg.State.Backend)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	for name, body := range map[string]string{
		"bad.toml": "listen = \":1\"\nlisten_addr = \":2\"\n",
		"bad.yaml": "listen: \":1\"\nlisten_addr: \":2\"\n",
		"bad.json": `{"listen":":1","listen_addr":":2"}`,
	} {
		_, err := Load(writeFile(t, name, body))
		require.Error(t, err, name)
	}
	_, err := Load(writeFile(t, "channeld.ini", "listen=:1"))
	require.ErrorContains(t, err, "unsupported config format")
}

func TestValidate(t *testing.T) {
	_, err := Load(writeFile(t, "a.yaml", "state:\n  backend: rocks\n"))
	require.ErrorContains(t, err, "state.backend")

	_, err = Load(writeFile(t, "b.yaml", "registry:\n  min_quote_for_launch: \"-1\"\n"))
	require.ErrorContains(t, err, "min_quote_for_launch")

	_, err = Load(writeFile(t, "c.yaml", "channels:\n  - launcher: \"0x0000000000000000000000000000000000000a11\"\n"))
	require.ErrorContains(t, err, "quote_token")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHANNELD_ENV", "prod")
	t.Setenv("CHANNELD_JWT_SECRET", "s3cret")
	cfg := Default()
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestParseHelpers(t *testing.T) {
	_, err := ParseAddress("0x123")
	require.Error(t, err)
	amount, err := ParseAmount("")
	require.NoError(t, err)
	require.Nil(t, amount)
	amount, err = ParseAmount("1_000")
	require.NoError(t, err)
	require.Equal(t, int64(1000), amount.Int64())
}
