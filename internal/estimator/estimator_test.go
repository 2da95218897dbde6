package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

func TestEstimateRejectsEmptyRoute(t *testing.T) {
	result := Estimate(domain.Route{})
	assert.False(t, result.WillSucceed)
	assert.NotEmpty(t, result.Reason)
}

func TestEstimateRejectsTooManyHops(t *testing.T) {
	hops := make([]domain.Hop, domain.MaxHops+1)
	result := Estimate(domain.Route{Hops: hops})
	assert.False(t, result.WillSucceed)
}

func TestEstimateCountsStorageReadsPerHop(t *testing.T) {
	route := domain.Route{Hops: []domain.Hop{
		{Venue: domain.Venue{Kind: domain.VenueSdex}},
		{Venue: domain.Venue{Kind: domain.VenueAmm}},
	}}
	result := Estimate(route)
	require.True(t, result.WillSucceed)
	assert.Equal(t, instanceReads+2, result.StorageReads)
	assert.Equal(t, 1, result.StorageWrites)
	assert.Equal(t, 1, result.Events)
}

func TestEstimateFourHopSwapStaysWithinDiscipline(t *testing.T) {
	hops := make([]domain.Hop, domain.MaxHops)
	for i := range hops {
		hops[i] = domain.Hop{Venue: domain.Venue{Kind: domain.VenueAmm}}
	}
	result := Estimate(domain.Route{Hops: hops})
	require.True(t, result.WillSucceed)
	assert.Equal(t, 6, result.StorageReads)
	assert.Equal(t, 1, result.StorageWrites)
}

func TestEstimateSdexHopsCostMoreCpuThanAmmHops(t *testing.T) {
	sdexRoute := domain.Route{Hops: []domain.Hop{{Venue: domain.Venue{Kind: domain.VenueSdex}}}}
	ammRoute := domain.Route{Hops: []domain.Hop{{Venue: domain.Venue{Kind: domain.VenueAmm}}}}
	assert.Greater(t, Estimate(sdexRoute).EstimatedCPU, Estimate(ammRoute).EstimatedCPU)
}
