package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(KindTransientExternal, "horizon_unreachable", "fetching offers", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.Equal(t, KindTransientExternal, wrapped.Kind)
}

func TestErrNoRouteCarriesAssetsInMessage(t *testing.T) {
	usd, _ := NewCreditAsset("USD", "GISSUER")
	err := ErrNoRoute(NativeAsset, usd)
	assert.Equal(t, KindRoutingError, err.Kind)
	assert.Equal(t, CodeNoRoute, err.Code)
	assert.Contains(t, err.Error(), "native")
}

func TestContractErrorPoolCallFailedIncludesHopIndex(t *testing.T) {
	err := NewPoolCallFailed(2)
	assert.Equal(t, ErrPoolCallFailed, err.Variant)
	assert.Contains(t, err.Error(), "hop=2")
}

func TestContractErrorSimpleVariant(t *testing.T) {
	err := NewContractError(ErrPaused)
	assert.Equal(t, "Paused", err.Error())
}
