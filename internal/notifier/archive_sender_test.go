package notifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/archive"
	"github.com/potooio/sentinel/internal/types"
)

func TestArchiveSender_Send(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "findings.db"))
	require.NoError(t, err)

	as, err := NewArchiveSender(zap.NewNop(), store, "")
	require.NoError(t, err)
	defer as.Close()

	ctx := context.Background()
	require.NoError(t, as.Send(ctx, testNotification()))

	recs, err := store.Find(ctx, archive.Query{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "E004", recs[0].EventID)
	assert.Equal(t, types.EventScannerAvoidance, recs[0].Finding.EventName)
}

func TestArchiveSender_ClosedStore(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "findings.db"))
	require.NoError(t, err)
	as, err := NewArchiveSender(zap.NewNop(), store, "LOW")
	require.NoError(t, err)
	require.NoError(t, as.Close())

	err = as.Send(context.Background(), testNotification())
	assert.ErrorIs(t, err, archive.ErrClosed)
}
