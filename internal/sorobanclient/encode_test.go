package sorobanclient

import (
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

func TestRouteToScValsEncodesAmountAndHops(t *testing.T) {
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	route := domain.Route{
		Hops: []domain.Hop{
			{Source: domain.NativeAsset, Destination: usd, Venue: domain.Venue{Kind: domain.VenueSdex}},
		},
	}

	vals, err := routeToScVals(1000, route)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, xdr.ScValTypeScvI128, vals[0].Type)
	assert.Equal(t, xdr.ScValTypeScvVec, vals[1].Type)
	require.Len(t, *vals[1].Vec, 1)
}

func TestI128ScValRejectsNegative(t *testing.T) {
	_, err := i128ScVal(-1)
	assert.Error(t, err)
}

func TestHopToScValEncodesPoolAddressForAMMVenue(t *testing.T) {
	usd, _ := domain.NewCreditAsset("USD", "GISSUER")
	hop := domain.Hop{
		Source:      domain.NativeAsset,
		Destination: usd,
		Venue:       domain.Venue{Kind: domain.VenueAmm, PoolAddress: "CPOOL123"},
	}
	val, err := hopToScVal(hop)
	require.NoError(t, err)
	require.Len(t, *val.Vec, 4)
	poolField := (*val.Vec)[2]
	require.NotNil(t, poolField.Str)
	assert.Equal(t, "CPOOL123", string(*poolField.Str))
}
