package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("IDS_DATA_DIR", "/data/ids")
	t.Setenv("CLICKHOUSE_PORT", "19000")
	t.Setenv("IDS_MAPPING_FILE", "/etc/ids/mappings.yaml")

	cfg := DefaultConfig()
	assert.Equal(t, "/data/ids/candidates", cfg.CandidatesDir())
	assert.Equal(t, "/data/ids/state", cfg.StateDir())
	assert.Equal(t, "/data/ids/catalog", cfg.CatalogDir())
	assert.Equal(t, 19000, cfg.ClickHousePort)
	assert.Equal(t, "/etc/ids/mappings.yaml", cfg.MappingFile)
}

func TestDefaultConfigBadPort(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch")
	t.Setenv("CLICKHOUSE_PORT", "nope")
	assert.Equal(t, "ch:9000", DefaultConfig().ClickHouseAddr())
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(lvl)
		require.NoError(t, err, lvl)
		assert.NotNil(t, logger)
	}
	_, err := NewLogger("loud")
	assert.Error(t, err)
}

func TestStatsConcurrent(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddRead(10)
			s.AddWritten(5, 1024)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(80), s.RowsRead.Load())
	assert.Equal(t, uint64(8), s.FilesRead.Load())
	assert.Equal(t, uint64(40), s.RowsWritten.Load())
	assert.Equal(t, uint64(8192), s.BytesWritten.Load())
	assert.Contains(t, s.Summary(), "read 80 rows from 8 files")

	core, logs := observer.New(zap.InfoLevel)
	s.Log(zap.New(core))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, uint64(40), logs.All()[0].ContextMap()["rows_written"])
}
