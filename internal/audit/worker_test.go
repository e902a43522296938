package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/internal/audit"
	"seedtrace/internal/audit/store/memory"
)

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := audit.NewService(store, "secret", audit.WithLogger(logger))
	sweeper := audit.NewSweeper(svc, 0)

	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.Append(ctx, audit.Entry{EntityType: audit.EntityLot, EntityID: id, Operation: audit.OperationCreate})
		require.NoError(t, err)
	}

	result := sweeper.Sweep(ctx)
	require.NotNil(t, result)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.Checked)

	tampered, err := store.Range(ctx, 1, 2, 1)
	require.NoError(t, err)
	tampered[0].NewValue = json.RawMessage(`{"edited":true}`)
	require.True(t, store.Overwrite(tampered[0]))

	result = sweeper.Sweep(ctx)
	require.NotNil(t, result)
	assert.False(t, result.Valid)
	assert.Equal(t, int64(2), result.BrokenAtID)

	assert.NoError(t, sweeper.Run(ctx), "zero interval disables the loop")
}
