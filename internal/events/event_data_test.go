package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapExecutedDataRoundTrip(t *testing.T) {
	data := SwapExecutedData{
		Sender:    "GABC...",
		RouteHash: "deadbeef",
		AmountIn:  "100.00000000000000",
		AmountOut: "1176.47058823529400",
		Fee:       "2.94117647058824",
	}

	jsonData, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "deadbeef")

	var unmarshaled SwapExecutedData
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))
	assert.Equal(t, data, unmarshaled)
	assert.Equal(t, SwapExecuted, data.EventType())
}

func TestEventWithDataMarshalRoundTrip(t *testing.T) {
	env := EventWithData{
		Type:      PoolRegistered,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Component: "registry",
		Data:      &PoolRegisteredData{Pool: "CPOOL..."},
	}

	raw, err := json.Marshal(&env)
	require.NoError(t, err)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.Component, decoded.Component)
	assert.Equal(t, env.Timestamp.Unix(), decoded.Timestamp.Unix())

	pd, ok := decoded.Data.(*PoolRegisteredData)
	require.True(t, ok)
	assert.Equal(t, "CPOOL...", pd.Pool)
}

func TestEventWithDataUnknownTypeFallsBackToGeneric(t *testing.T) {
	raw := []byte(`{"type":"something_new","timestamp":"2024-01-01T00:00:00Z","component":"test","data":{"foo":"bar"}}`)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	gd, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, "bar", gd.Data["foo"])
}

func TestBusEmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	bus.Emit("contract", &ContractPausedData{})

	select {
	case env := <-ch:
		assert.Equal(t, ContractPaused, env.Type)
		assert.Equal(t, "contract", env.Component)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)
	unsubscribe()

	bus.Emit("contract", &ContractPausedData{})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
