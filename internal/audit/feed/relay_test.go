package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/internal/audit"
	"seedtrace/internal/audit/store/memory"
)

type recordingProducer struct {
	batches [][]*audit.Record
	failOn  int
	calls   int
}

func (p *recordingProducer) Publish(_ context.Context, records []*audit.Record) error {
	p.calls++
	if p.failOn == p.calls {
		return errors.New("broker unavailable")
	}
	p.batches = append(p.batches, records)
	return nil
}

func (p *recordingProducer) ids() []int64 {
	var ids []int64
	for _, b := range p.batches {
		for _, r := range b {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func seed(t *testing.T, svc *audit.Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Append(context.Background(), audit.Entry{
			EntityType: audit.EntityLot,
			EntityID:   fmt.Sprintf("lot-%d", i),
			Operation:  audit.OperationCreate,
		})
		require.NoError(t, err)
	}
}

func TestRelayPoll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	svc := audit.NewService(store, "secret")
	seed(t, svc, 5)

	t.Run("publishes in id order across batches", func(t *testing.T) {
		producer := &recordingProducer{}
		relay := NewRelay(store, producer, WithBatchSize(2), WithCursor(0))

		n, err := relay.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, producer.ids())
		assert.Len(t, producer.batches, 3)
		assert.Equal(t, int64(5), relay.Cursor())

		n, err = relay.Poll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("failed publish keeps the cursor", func(t *testing.T) {
		producer := &recordingProducer{failOn: 2}
		relay := NewRelay(store, producer, WithBatchSize(2), WithCursor(0))

		n, err := relay.Poll(ctx)
		require.Error(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, int64(2), relay.Cursor())

		n, err = relay.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, producer.ids())
	})

	t.Run("starts after a given cursor", func(t *testing.T) {
		producer := &recordingProducer{}
		relay := NewRelay(store, producer, WithCursor(3))

		_, err := relay.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 5}, producer.ids())
	})
}
