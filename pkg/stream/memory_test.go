package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLogGroupDelivery(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, l.CreateGroup(ctx, MarketEvents, SimilarityGroup))
	require.NoError(t, l.Append(ctx, MarketEvents, map[string]string{"market_id": "A"}))
	require.NoError(t, l.Append(ctx, MarketEvents, map[string]string{"market_id": "B"}))

	msgs, err := l.ReadGroup(ctx, MarketEvents, SimilarityGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "A", msgs[0].Values["market_id"])

	// Nothing new until another append.
	again, err := l.ReadGroup(ctx, MarketEvents, SimilarityGroup, "c1", 10)
	require.NoError(t, err)
	require.Empty(t, again)

	require.Equal(t, 2, l.PendingCount(MarketEvents, SimilarityGroup))
	require.NoError(t, l.Ack(ctx, MarketEvents, SimilarityGroup, msgs[0].ID))
	require.Equal(t, 1, l.PendingCount(MarketEvents, SimilarityGroup))

	// Only the unacked record is redelivered.
	redelivered := l.Redeliver(MarketEvents, SimilarityGroup)
	require.Len(t, redelivered, 1)
	require.Equal(t, "B", redelivered[0].Values["market_id"])
}

func TestMemoryLogIndependentGroups(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, l.CreateGroup(ctx, MarketPairs, ArbitrageGroup))
	require.NoError(t, l.Append(ctx, MarketPairs, map[string]string{"k": "v"}))

	msgs, err := l.ReadGroup(ctx, MarketPairs, ArbitrageGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A group created later starts at the stream head and sees everything.
	require.NoError(t, l.CreateGroup(ctx, MarketPairs, "audit"))
	msgs2, err := l.ReadGroup(ctx, MarketPairs, "audit", "c2", 10)
	require.NoError(t, err)
	require.Len(t, msgs2, 1)
}

func TestMemoryLogReadUnknownGroupFails(t *testing.T) {
	l := NewMemoryLog()
	_, err := l.ReadGroup(context.Background(), MarketEvents, "nope", "c1", 10)
	require.Error(t, err)
}

func TestMemoryLogCopiesValues(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	values := map[string]string{"market_id": "A"}
	require.NoError(t, l.Append(ctx, MarketEvents, values))
	values["market_id"] = "mutated"

	require.Equal(t, "A", l.Records(MarketEvents)[0].Values["market_id"])
}

func TestMemoryLogCountRespected(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, l.CreateGroup(ctx, Opportunities, ExecutionGroup))
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, Opportunities, map[string]string{"n": "x"}))
	}

	msgs, err := l.ReadGroup(ctx, Opportunities, ExecutionGroup, "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	rest, err := l.ReadGroup(ctx, Opportunities, ExecutionGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
}
