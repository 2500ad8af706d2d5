package cursor

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tok := Token{Trades: 17, Strategies: 4, IssuedAt: at}

	s := tok.Encode()
	assert.NotContains(t, s, "=")
	assert.NotContains(t, s, "+")

	got, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, int64(17), got.Seq(records.Trades))
	assert.Equal(t, int64(4), got.Seq(records.Strategies))
	assert.True(t, at.Equal(got.IssuedAt))
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode("")
	require.NoError(t, err)
	assert.Equal(t, Token{}, got)
}

func TestDecode_Malformed(t *testing.T) {
	for _, s := range []string{"1700000000000-abc123xyz", "!!!", "bm90LWpzb24", "eyJ0IjotMX0"} {
		_, err := Decode(s)
		assert.ErrorIs(t, err, common.ErrInvalidCursor, s)
	}
}

func TestWith(t *testing.T) {
	tok := Token{Trades: 1, Strategies: 2}
	next := tok.With(records.Strategies, 9).With(records.Trades, 5)

	assert.Equal(t, Token{Trades: 1, Strategies: 2}, tok, "receiver is not modified")
	assert.Equal(t, int64(5), next.Trades)
	assert.Equal(t, int64(9), next.Strategies)
}
