package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/archive"
	"github.com/potooio/sentinel/internal/config"
	"github.com/potooio/sentinel/internal/testutil"
	"github.com/potooio/sentinel/internal/types"
)

const productsCSV = `SKU,product_name,quantity,EPC_range,barcode,weight,price
PRD_F_01,Munchee Chocolate Marie,100,E280-0001..E280-0100,4792024011348,400,540
`

func TestBuild_ArchivesFindings(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.ProductsCSV = testutil.WriteFile(t, "products_list.csv", productsCSV)
	cfg.Data.CustomersCSV = filepath.Join(dir, "missing.csv")
	cfg.Data.EventsPath = filepath.Join(dir, "out", "events.jsonl")
	cfg.Notifier.Archive.Enabled = true
	cfg.Notifier.Archive.Path = filepath.Join(dir, "archive", "findings.db")

	ctx, cancel := context.WithCancel(context.Background())
	sys, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	sys.Start(ctx)

	entries, err := sys.Process(ctx, rfidEnv(1, "SCC1", "PRD_F_01"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runID := sys.RunID()

	cancel()
	require.NoError(t, sys.Close())

	data, err := os.ReadFile(cfg.Data.EventsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"event_id":"E000"`)

	store, err := archive.Open(cfg.Notifier.Archive.Path)
	require.NoError(t, err)
	defer store.Close()
	counts, err := store.CountByEvent(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, map[types.EventName]int{types.EventScannerAvoidance: 1}, counts)
}

func TestBuild_NoSendersMeansNoDispatcher(t *testing.T) {
	cfg := config.Default()
	cfg.Data.ProductsCSV = ""
	cfg.Data.CustomersCSV = ""
	cfg.Data.EventsPath = ""

	sys, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, sys.dispatcher)
	assert.NoError(t, sys.Close())
}

func TestBuild_BadCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Data.ProductsCSV = testutil.WriteFile(t, "products_list.csv", "sku_only\nX\n")

	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "loading reference data")
}

func TestBuildSenders_FailureClosesOpened(t *testing.T) {
	cfg := config.NotifierConfig{
		Archive: config.ArchiveConfig{
			Enabled: true,
			Path:    filepath.Join(t.TempDir(), "findings.db"),
		},
		Redis: config.RedisConfig{Enabled: true},
	}
	_, err := BuildSenders(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "redis sender")
}
