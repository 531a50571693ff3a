package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/sentinel/internal/testutil"
	"github.com/potooio/sentinel/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(run, id string, name types.EventName, station string) Record {
	return Record{
		RunID:     run,
		EventID:   id,
		Timestamp: testutil.At(1),
		Finding: types.Finding{
			EventName: name,
			StationID: station,
			Severity:  types.SeverityHigh,
			Timestamp: testutil.At(1),
			Details:   map[string]interface{}{"product_sku": "PRD_F_01"},
		},
	}
}

func TestSaveAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("run-1", "E000", types.EventScannerAvoidance, "SCC1")))
	require.NoError(t, s.Save(ctx, record("run-1", "E001", types.EventLongQueue, "SCC2")))
	require.NoError(t, s.Save(ctx, record("run-2", "E000", types.EventScannerAvoidance, "SCC1")))

	all, err := s.Find(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-2", all[0].RunID, "newest first")

	byStation, err := s.Find(ctx, Query{RunID: "run-1", StationID: "SCC1"})
	require.NoError(t, err)
	require.Len(t, byStation, 1)
	got := byStation[0]
	assert.Equal(t, "E000", got.EventID)
	assert.True(t, testutil.At(1).Equal(got.Timestamp))
	assert.Equal(t, types.EventScannerAvoidance, got.Finding.EventName)
	assert.Equal(t, "PRD_F_01", got.Finding.Detail("product_sku"))

	limited, err := s.Find(ctx, Query{EventName: types.EventScannerAvoidance, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSave_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := record("run-1", "E000", types.EventLongWait, "SCC1")
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Save(ctx, rec))

	all, err := s.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCountByEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("run-1", "E000", types.EventLongQueue, "SCC1")))
	require.NoError(t, s.Save(ctx, record("run-1", "E001", types.EventLongQueue, "SCC2")))
	require.NoError(t, s.Save(ctx, record("run-2", "E000", types.EventLongWait, "SCC1")))

	counts, err := s.CountByEvent(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[types.EventName]int{types.EventLongQueue: 2}, counts)

	counts, err = s.CountByEvent(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.EventLongWait])
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, record("run-1", "E000", types.EventLongQueue, "SCC1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Save(context.Background(), record("r", "E000", types.EventLongQueue, "")), ErrClosed)
	_, err := s.Find(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrClosed)
}
