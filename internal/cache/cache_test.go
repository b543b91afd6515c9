package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/cache"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(gameID string, spread float64, at time.Time) models.MarketLine {
	return models.MarketLine{
		GameID:         gameID,
		Book:           "pinnacle",
		SpreadHome:     spread,
		SpreadAway:     -spread,
		Total:          44.5,
		MoneylineHome:  -150,
		MoneylineAway:  130,
		SpreadHomeOdds: -108,
		SpreadAwayOdds: -112,
		CapturedAt:     at,
	}
}

func TestEncodeDecode(t *testing.T) {
	line := snapshot("g1", -3.5, time.Date(2026, 9, 13, 16, 55, 0, 0, time.UTC))

	data, err := cache.Encode(line)
	require.NoError(t, err)

	got, err := cache.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, line.GameID, got.GameID)
	assert.Equal(t, line.SpreadHome, got.SpreadHome)
	assert.Equal(t, line.MoneylineAway, got.MoneylineAway)
	assert.Equal(t, line.SpreadAwayOdds, got.SpreadAwayOdds)
	assert.True(t, line.CapturedAt.Equal(got.CapturedAt))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := cache.Decode([]byte("not msgpack"))
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "handicapper:lines:g1", cache.Key("g1"))
}

func TestMemoryLines_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryLines()
	base := time.Date(2026, 9, 13, 12, 0, 0, 0, time.UTC)

	_, ok, err := store.LatestLine(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := store.Put(ctx, snapshot("g1", -3, base.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = store.Put(ctx, snapshot("g1", -2.5, base))
	require.NoError(t, err)
	assert.False(t, stored, "older snapshot is ignored")

	line, ok, err := store.LatestLine(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -3.0, line.SpreadHome)

	_, err = store.Put(ctx, models.MarketLine{})
	assert.Error(t, err)
}
