package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterResolvesMappedAsset(t *testing.T) {
	t.Parallel()

	biz := NewPaper("paper-biz", "USDT", nil)
	personal := NewPaper("paper-personal", "USDT", nil)

	r := NewRouter(map[string]Exchange{
		"BTC": biz,
		"ETH": biz,
		"SOL": personal,
	}, nil, "")

	ex, err := r.For("SOL")
	require.NoError(t, err)
	assert.Same(t, personal, ex)

	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, r.Assets())
}

func TestRouterFallsBackToDefault(t *testing.T) {
	t.Parallel()

	biz := NewPaper("paper-biz", "USDT", nil)
	def := NewPaper("paper-default", "USDT", nil)

	r := NewRouter(map[string]Exchange{"BTC": biz}, def, "paper-default")

	ex, err := r.For("DOGE")
	require.NoError(t, err)
	assert.Same(t, def, ex)
	assert.Equal(t, "paper-default", r.DefaultID())
}

func TestRouterFailsClosedWithoutDefault(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]Exchange{"BTC": NewPaper("paper-biz", "USDT", nil)}, nil, "")

	ex, err := r.For("DOGE")
	assert.Nil(t, ex, "no adapter may be invoked for an unroutable asset")
	assert.ErrorIs(t, err, ErrNoRoute)
}
