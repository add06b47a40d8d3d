package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	body := "ticker,date,close\n" +
		"AAPL,2024-03-05,170.10\n" +
		"AAPL,2024-03-06,171.55\n" +
		"RY.TO,2024-03-06,132.00\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	ctx := context.Background()

	p, ok, err := src.ClosePrice(ctx, "AAPL", types.NewDate(2024, time.March, 5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("170.10")))

	// Holiday / missing day is absent, not an error.
	_, ok, err = src.ClosePrice(ctx, "AAPL", types.NewDate(2024, time.March, 9))
	require.NoError(t, err)
	assert.False(t, ok)

	// Live quote is the latest known close.
	p, ok, err = src.CurrentPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("171.55")))

	_, ok, err = src.CurrentPrice(ctx, "GME")
	require.NoError(t, err)
	assert.False(t, ok)
}
