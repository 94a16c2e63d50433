package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"season-predictions/internal/domain"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "grade", "leaderboard", "lookups", "answer", "superlative"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestParseQuestionID(t *testing.T) {
	id, err := parseQuestionID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseQuestionID(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, newLogger("debug", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("nonsense", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("", true).GetLevel())
}

func TestGradeWithoutDatabaseReportsMissingSeason(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"grade", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--season", "2024-25"})

	err := root.Execute()
	require.ErrorIs(t, err, domain.ErrSeasonNotFound)
	assert.NotContains(t, out.String(), "run_id", "no summary before the run starts")
}
