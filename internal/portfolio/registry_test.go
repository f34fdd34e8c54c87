package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddNormalizesAndRejectsDuplicates(t *testing.T) {
	info := newFakeInfo(map[string]float64{"AAPL": 190.5, "MSFT": 410})
	reg := NewRegistry(info, testLogger())
	ctx := context.Background()

	asset, err := reg.Add(ctx, "  aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", asset.Ticker)
	assert.Equal(t, "190.5", asset.Price.String())

	_, err = reg.Add(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrDuplicateAsset)
	_, err = reg.Add(ctx, "aApL")
	assert.ErrorIs(t, err, ErrDuplicateAsset)

	_, err = reg.Add(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, reg.Tickers())
	assert.Equal(t, 2, info.calls)
}

func TestRegistryAddEmptySymbol(t *testing.T) {
	reg := NewRegistry(newFakeInfo(nil), testLogger())
	_, err := reg.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySymbol)
	assert.Zero(t, reg.Len())
}

func TestRegistryLookupFailureLeavesBasketUntouched(t *testing.T) {
	info := newFakeInfo(map[string]float64{"AAPL": 190, "ZERO": 0})
	reg := NewRegistry(info, testLogger())
	ctx := context.Background()

	_, err := reg.Add(ctx, "AAPL")
	require.NoError(t, err)

	_, err = reg.Add(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrInfoUnavailable)

	_, err = reg.Add(ctx, "ZERO")
	assert.ErrorIs(t, err, ErrInfoUnavailable)

	assert.Equal(t, []string{"AAPL"}, reg.Tickers())

	// a failed symbol is not left pending
	info.prices["NOPE"] = 12
	_, err = reg.Add(ctx, "NOPE")
	assert.NoError(t, err)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(newFakeInfo(map[string]float64{"AAPL": 1, "MSFT": 2, "GOOG": 3}), testLogger())
	ctx := context.Background()
	for _, s := range []string{"AAPL", "MSFT", "GOOG"} {
		_, err := reg.Add(ctx, s)
		require.NoError(t, err)
	}

	assert.True(t, reg.Remove("msft"))
	assert.Equal(t, []string{"AAPL", "GOOG"}, reg.Tickers())

	assert.False(t, reg.Remove("TSLA"))
	assert.Equal(t, []string{"AAPL", "GOOG"}, reg.Tickers())

	assert.False(t, reg.Contains("MSFT"))
	assert.True(t, reg.Contains("goog"))

	reg.Clear()
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.Assets())
}
