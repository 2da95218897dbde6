package sorobanclient

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// routeToScVals encodes execute_swap's (amount_in, route) arguments as the
// contract ABI expects: route is a vector of hop structs, each
// {source, destination, pool, pool_type} (§4.6).
func routeToScVals(amountIn int64, route domain.Route) ([]xdr.ScVal, error) {
	amountVal, err := i128ScVal(amountIn)
	if err != nil {
		return nil, fmt.Errorf("encode amount_in: %w", err)
	}

	hops := make(xdr.ScVec, 0, len(route.Hops))
	for i, hop := range route.Hops {
		hopVal, err := hopToScVal(hop)
		if err != nil {
			return nil, fmt.Errorf("encode hop %d: %w", i, err)
		}
		hops = append(hops, hopVal)
	}
	routeVal := xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &hops}

	return []xdr.ScVal{amountVal, routeVal}, nil
}

func hopToScVal(hop domain.Hop) (xdr.ScVal, error) {
	poolAddress := ""
	poolType := uint32(0)
	if hop.Venue.Kind == domain.VenueAmm {
		poolAddress = hop.Venue.PoolAddress
		poolType = 1
	}

	fields := xdr.ScVec{
		assetScVal(hop.Source),
		assetScVal(hop.Destination),
		stringScVal(poolAddress),
		u32ScVal(poolType),
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &fields}, nil
}

func assetScVal(a domain.Asset) xdr.ScVal {
	if a.Tag == domain.AssetNative {
		return stringScVal("native")
	}
	return stringScVal(a.Code + ":" + a.Issuer)
}

func stringScVal(s string) xdr.ScVal {
	sym := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &sym}
}

func u32ScVal(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

func i128ScVal(v int64) (xdr.ScVal, error) {
	if v < 0 {
		return xdr.ScVal{}, fmt.Errorf("amount must be non-negative, got %d", v)
	}
	parts := &xdr.Int128Parts{Hi: 0, Lo: xdr.Uint64(v)}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: parts}, nil
}
