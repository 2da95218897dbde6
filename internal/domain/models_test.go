package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetStringAndParseRoundTrip(t *testing.T) {
	usd, err := NewCreditAsset("USD", "GISSUER")
	require.NoError(t, err)

	cases := []Asset{NativeAsset, usd}
	for _, a := range cases {
		parsed, err := ParseAsset(a.String())
		require.NoError(t, err)
		assert.True(t, a.Equal(parsed), "round trip mismatch for %s", a.String())
	}
}

func TestParseAssetRejectsBareCodeWithoutIssuer(t *testing.T) {
	_, err := ParseAsset("USD")
	assert.Error(t, err)
}

func TestNewCreditAssetRejectsOversizedCode(t *testing.T) {
	_, err := NewCreditAsset("THISCODEISWAYTOOLONG", "GISSUER")
	assert.Error(t, err)
}

func TestOfferValidateRejectsSameAssetOnBothSides(t *testing.T) {
	o := Offer{
		ID:      1,
		Selling: NativeAsset,
		Buying:  NativeAsset,
		Amount:  decimal.NewFromInt(100),
		PriceD:  1,
	}
	assert.Error(t, o.Validate())
}

func TestOfferValidateRejectsNonPositiveAmount(t *testing.T) {
	usd, _ := NewCreditAsset("USD", "GISSUER")
	o := Offer{
		ID:      1,
		Selling: NativeAsset,
		Buying:  usd,
		Amount:  decimal.Zero,
		PriceD:  1,
	}
	assert.Error(t, o.Validate())
}

func TestRouteValidateChecksHopChaining(t *testing.T) {
	usd, _ := NewCreditAsset("USD", "GISSUER")
	eur, _ := NewCreditAsset("EUR", "GISSUER2")

	good := Route{
		Hops: []Hop{
			{Source: NativeAsset, Destination: usd},
			{Source: usd, Destination: eur},
		},
	}
	assert.NoError(t, good.Validate(NativeAsset, eur))

	brokenChain := Route{
		Hops: []Hop{
			{Source: NativeAsset, Destination: usd},
			{Source: eur, Destination: NativeAsset},
		},
	}
	assert.Error(t, brokenChain.Validate(NativeAsset, NativeAsset))
}

func TestRouteValidateRejectsTooManyHops(t *testing.T) {
	usd, _ := NewCreditAsset("USD", "GISSUER")
	hops := make([]Hop, MaxHops+1)
	cur := NativeAsset
	for i := range hops {
		hops[i] = Hop{Source: cur, Destination: usd}
		cur = usd
	}
	r := Route{Hops: hops}
	assert.Error(t, r.Validate(NativeAsset, usd))
}

func TestQuoteRequestValidateRejectsSameSourceAndDestination(t *testing.T) {
	q := QuoteRequest{Source: NativeAsset, Dest: NativeAsset, AmountIn: decimal.NewFromInt(10)}
	err := q.Validate()
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindInvalidRequest, de.Kind)
}

func TestQuoteRequestValidateRejectsNonPositiveAmount(t *testing.T) {
	usd, _ := NewCreditAsset("USD", "GISSUER")
	q := QuoteRequest{Source: NativeAsset, Dest: usd, AmountIn: decimal.Zero}
	assert.Error(t, q.Validate())
}

func TestPoolDescriptorStale(t *testing.T) {
	fresh := PoolDescriptor{StaleRefresh: 3}
	assert.False(t, fresh.Stale(3))

	stale := PoolDescriptor{StaleRefresh: 4}
	assert.True(t, stale.Stale(3))
}
