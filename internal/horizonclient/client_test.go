package horizonclient

import (
	"errors"
	"testing"

	stellarhorizon "github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/support/render/problem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

func TestAssetFromHorizonNative(t *testing.T) {
	a, err := assetFromHorizon(base.Asset{Type: "native"})
	require.NoError(t, err)
	assert.Equal(t, domain.NativeAsset, a)
}

func TestAssetFromHorizonCredit(t *testing.T) {
	a, err := assetFromHorizon(base.Asset{Type: "credit_alphanum4", Code: "USD", Issuer: "GISSUER"})
	require.NoError(t, err)
	assert.Equal(t, domain.AssetCredit, a.Tag)
	assert.Equal(t, "USD", a.Code)
}

func TestSetAssetFieldsNative(t *testing.T) {
	var at stellarhorizon.AssetType
	var code, issuer string
	err := setAssetFields(&at, &code, &issuer, domain.NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, stellarhorizon.AssetTypeNative, at)
}

func TestSetAssetFieldsRejectsOversizedCode(t *testing.T) {
	var at stellarhorizon.AssetType
	var code, issuer string
	oversized, _ := domain.NewCreditAsset("ABCD", "GISSUER")
	oversized.Code = "THISCODEISWAYTOOLONG"
	err := setAssetFields(&at, &code, &issuer, oversized)
	assert.Error(t, err)
}

func TestIsTransientOnRateLimitAndServerErrors(t *testing.T) {
	rateLimited := &stellarhorizon.Error{Problem: problem.P{Status: 429}}
	serverErr := &stellarhorizon.Error{Problem: problem.P{Status: 503}}
	clientErr := &stellarhorizon.Error{Problem: problem.P{Status: 400}}

	assert.True(t, isTransient(rateLimited))
	assert.True(t, isTransient(serverErr))
	assert.False(t, isTransient(clientErr))
	assert.True(t, isTransient(errors.New("dial tcp: connection refused")))
}

func TestClassifyMapsToDomainKind(t *testing.T) {
	rateLimited := &stellarhorizon.Error{Problem: problem.P{Status: 429}}
	err := classify(rateLimited, "fetch offers")
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindTransientExternal, de.Kind)

	clientErr := &stellarhorizon.Error{Problem: problem.P{Status: 400}}
	err = classify(clientErr, "fetch offers")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindFatalExternal, de.Kind)
}

func TestPriceLevelToEntry(t *testing.T) {
	e := priceLevelToEntry("1.50", "100")
	assert.True(t, e.Price.Equal(e.Price))
	assert.Equal(t, "1.5", e.Price.String())
	assert.Equal(t, "100", e.Amount.String())
}
