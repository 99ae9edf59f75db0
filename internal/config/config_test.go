package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempConfig 把YAML内容写入临时配置文件并返回路径
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigAppliesDefaults 验证缺省字段会被填充默认值
func TestLoadConfigAppliesDefaults(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "sk-test"
  api_url: "https://api.example.com/v1/chat/completions"
  model: "qwen-plus"
mysql:
  host: "localhost"
  port: 3306
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err, "加载合法配置不应返回错误")
	require.NotNil(t, cfg)

	assert.Equal(t, ":8888", cfg.Server.Address, "服务器地址应有默认值")
	assert.Equal(t, 500, cfg.Chunker.ChunkSize, "分块大小应有默认值")
	assert.Equal(t, 100, cfg.Chunker.OverlapValue(), "分块重叠应有默认值")
	assert.Equal(t, 0.7, cfg.Retrieval.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Retrieval.KeywordWeight)
	assert.Equal(t, 10, cfg.FitScore.YesWeight)
	assert.Equal(t, 5, cfg.FitScore.PartialWeight)
	assert.Equal(t, "info", cfg.Logger.Level)
}

// TestLoadConfigRetryDefaults 验证重试策略的默认值派生
func TestLoadConfigRetryDefaults(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "sk-test"
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.LLM.MaxAttemptsOrDefault())
	assert.Equal(t, time.Second, cfg.LLM.BaseDelayOrDefault())
	assert.Equal(t, 45*time.Second, cfg.LLM.PipelineTimeoutOrDefault())
}

// TestLoadConfigExplicitRetryValues 验证显式配置优先于默认值
func TestLoadConfigExplicitRetryValues(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  max_attempts: 5
  base_delay_ms: 200
  timeout_seconds: 90
chunker:
  chunk_size: 300
  overlap: 50
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.LLM.MaxAttemptsOrDefault())
	assert.Equal(t, 200*time.Millisecond, cfg.LLM.BaseDelayOrDefault())
	assert.Equal(t, 90*time.Second, cfg.LLM.PipelineTimeoutOrDefault())
	assert.Equal(t, 300, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.OverlapValue())
}

// TestLoadConfigZeroOverlap 验证显式配置0重叠不会被默认值覆盖
func TestLoadConfigZeroOverlap(t *testing.T) {
	configPath := writeTempConfig(t, `
chunker:
  chunk_size: 200
  overlap: 0
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Chunker.OverlapValue(), "显式的零重叠应原样保留")
}

// TestLoadConfigEnvOverridesAPIKey 验证环境变量优先于文件中的密钥
func TestLoadConfigEnvOverridesAPIKey(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "sk-from-file"
mysql:
  password: "file-password"
`)

	t.Setenv("LLM_API_KEY", "sk-from-env")
	t.Setenv("MYSQL_PASSWORD", "env-password")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey, "环境变量应覆盖文件中的API密钥")
	assert.Equal(t, "env-password", cfg.MySQL.Password, "环境变量应覆盖文件中的数据库密码")
}

// TestLoadConfigMissingFile 验证找不到配置文件时返回错误
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
