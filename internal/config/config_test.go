package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, int64(50), cfg.MinAmountCents)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("MIN_AMOUNT_CENTS", "100")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("APP_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, int64(100), cfg.MinAmountCents)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.Migrate)
}

func TestLoadConfigFileBelowEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pix.yaml")
	require.NoError(t, os.WriteFile(file, []byte("HTTP_PORT: \"9090\"\nKAFKA_TOPIC: from-file\n"), 0o600))
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("KAFKA_TOPIC", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "from-env", cfg.KafkaTopic)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":  {"STORE_DRIVER", "mongo"},
		"minimum": {"MIN_AMOUNT_CENTS", "0"},
		"timeout": {"PROVIDER_TIMEOUT", "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProdRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
