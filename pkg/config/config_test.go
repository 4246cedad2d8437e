package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tgcloud/internal/bytesize"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
logging:
  level: debug
  format: json
database:
  driver: mongo
  uri: mongodb://localhost:27017
telegram:
  api_url: http://localhost:8081
  chat_id: "-1001234567890"
bots:
  - id: bot1
    token: 111:aaa
  - id: bot2
    token: 222:bbb
transfer:
  chunk_size: 8Mi
  max_per_bot_concurrency: 2
web:
  port: 9000
  read_timeout: 15s
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "tgcloud", cfg.Database.Name)

	assert.Equal(t, "http://localhost:8081", cfg.Telegram.APIURL)
	assert.Equal(t, "-1001234567890", cfg.Telegram.ChatID)

	require.Len(t, cfg.Bots, 2)
	assert.Equal(t, "bot1", cfg.Bots[0].ID)
	assert.Equal(t, "111:aaa", cfg.Bots[0].Token)

	assert.Equal(t, 8*bytesize.MiB, cfg.Transfer.ChunkSize)
	assert.Equal(t, 12, cfg.Transfer.MaxGlobalConcurrency)
	assert.Equal(t, 2, cfg.Transfer.MaxPerBotConcurrency)

	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, 15*time.Second, cfg.Web.ReadTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TGCLOUD_DATABASE_URI", "mongodb://override:27017")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", cfg.Database.URI)
}

func TestLoadBotsFromEnv(t *testing.T) {
	t.Setenv("TGCLOUD_BOTS", `[{"id":"envbot","token":"333:ccc"}]`)

	noBots := `
database:
  driver: badger
  path: /tmp/tgcloud-meta
telegram:
  chat_id: "42"
`
	cfg, err := Load(writeConfigFile(t, noBots))
	require.NoError(t, err)
	require.Len(t, cfg.Bots, 1)
	assert.Equal(t, "envbot", cfg.Bots[0].ID)
	assert.Equal(t, "333:ccc", cfg.Bots[0].Token)
	assert.Equal(t, DefaultTelegramAPIURL, cfg.Telegram.APIURL)
}

func TestLoadBotsFromEnvBadJSON(t *testing.T) {
	t.Setenv("TGCLOUD_BOTS", "not json")

	_, err := Load(writeConfigFile(t, `
database:
  driver: badger
  path: /tmp/x
telegram:
  chat_id: "42"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TGCLOUD_BOTS")
}

func TestLoadMissingFileFailsValidation(t *testing.T) {
	// Without a file or environment the required fields stay empty.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := Load("")
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, DefaultDatabaseName, cfg.Database.Name)
	assert.Equal(t, DefaultTelegramAPIURL, cfg.Telegram.APIURL)
	assert.Equal(t, DefaultChunkSize, cfg.Transfer.ChunkSize)
	assert.Equal(t, 12, cfg.Transfer.MaxGlobalConcurrency)
	assert.Equal(t, 3, cfg.Transfer.MaxPerBotConcurrency)
	assert.Equal(t, DefaultWebPort, cfg.Web.Port)
}

func validTestConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Database.URI = "mongodb://localhost:27017"
	cfg.Telegram.ChatID = "42"
	cfg.Bots = []BotConfig{{ID: "bot1", Token: "111:aaa"}}
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validTestConfig()))
}

func TestValidateMissingChatID(t *testing.T) {
	cfg := validTestConfig()
	cfg.Telegram.ChatID = ""
	require.Error(t, Validate(cfg))
}

func TestValidateBadLogLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "verbose"
	require.Error(t, Validate(cfg))
}

func TestValidateBadDriver(t *testing.T) {
	cfg := validTestConfig()
	cfg.Database.Driver = "sqlite"
	require.Error(t, Validate(cfg))
}

func TestValidateMongoRequiresURI(t *testing.T) {
	cfg := validTestConfig()
	cfg.Database.URI = ""
	require.Error(t, Validate(cfg))
}

func TestValidateDuplicateBotIDs(t *testing.T) {
	cfg := validTestConfig()
	cfg.Bots = append(cfg.Bots, BotConfig{ID: "bot1", Token: "222:bbb"})
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate bot id")
}
