package judgeconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearJudgeEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ENVIRONMENT", "JUDGE_ISOLATE_BIN", "JUDGE_BOX_ROOT", "JUDGE_WORKER_COUNT",
		"JUDGE_BOX_ID_BASE", "JUDGE_QUEUE_CAPACITY", "JUDGE_QUEUE_TIMEOUT_SECONDS",
		"JUDGE_COMPILE_TIME_LIMIT_SECONDS", "JUDGE_MAX_TIME_LIMIT_SECONDS",
		"JUDGE_MAX_MEMORY_LIMIT_MB", "JUDGE_OUTPUT_CAP_BYTES", "DATABASE_URL",
		"DATABASE_TYPE", "JUDGE_REDIS_URL", "JUDGE_HTTP_ADDR",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearJudgeEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "/usr/bin/isolate", cfg.IsolateBin)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.GreaterOrEqual(t, cfg.WorkerCount, 1)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearJudgeEnv(t)
	require.NoError(t, os.Setenv("JUDGE_WORKER_COUNT", "3"))
	require.NoError(t, os.Setenv("JUDGE_BOX_ID_BASE", "5"))
	require.NoError(t, os.Setenv("DATABASE_TYPE", "postgres"))
	defer clearJudgeEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, []int{5, 6, 7}, cfg.BoxIDs())
	assert.Equal(t, "postgres", cfg.DatabaseType)
}

func TestLoad_RejectsZeroWorkerCount(t *testing.T) {
	clearJudgeEnv(t)
	require.NoError(t, os.Setenv("JUDGE_WORKER_COUNT", "0"))
	defer clearJudgeEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDatabaseType(t *testing.T) {
	clearJudgeEnv(t)
	require.NoError(t, os.Setenv("DATABASE_TYPE", "mongo"))
	defer clearJudgeEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestBoxIDs_SequentialFromBase(t *testing.T) {
	cfg := &Config{WorkerCount: 4, BoxIDBase: 10}
	assert.Equal(t, []int{10, 11, 12, 13}, cfg.BoxIDs())
}
