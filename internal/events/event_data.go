// Package events provides a typed pub-sub event bus used to surface router
// contract audit events (§4.6, §6) and indexer/pool-registry health
// transitions to operational tooling such as cmd/monitor.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event carried by an EventWithData.
type EventType string

const (
	// Contract audit events (§4.6, §6).
	ContractInitialized EventType = "init"
	AdminChanged         EventType = "admin_changed"
	PoolRegistered       EventType = "reg_pool"
	ContractPaused       EventType = "paused"
	ContractUnpaused     EventType = "unpaused"
	SwapExecuted         EventType = "swap"

	// Operational health events, surfaced to cmd/monitor.
	IndexerLagChanged    EventType = "indexer_lag_changed"
	PoolRegistryRefreshed EventType = "pool_registry_refreshed"
	PoolMarkedStale      EventType = "pool_marked_stale"
)

// EventData is the interface every typed event payload implements.
type EventData interface {
	EventType() EventType
}

// ContractInitializedData is the payload of the `init` contract event.
type ContractInitializedData struct {
	Admin      string `json:"admin"`
	FeeRateBps int64  `json:"fee_rate"`
	FeeTo      string `json:"fee_to"`
}

func (d *ContractInitializedData) EventType() EventType { return ContractInitialized }

// AdminChangedData is the payload of the `admin_changed` contract event.
type AdminChangedData struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func (d *AdminChangedData) EventType() EventType { return AdminChanged }

// PoolRegisteredData is the payload of the `reg_pool` contract event.
type PoolRegisteredData struct {
	Pool string `json:"pool"`
}

func (d *PoolRegisteredData) EventType() EventType { return PoolRegistered }

// ContractPausedData is the payload of the `paused` contract event.
type ContractPausedData struct{}

func (d *ContractPausedData) EventType() EventType { return ContractPaused }

// ContractUnpausedData is the payload of the `unpaused` contract event.
type ContractUnpausedData struct{}

func (d *ContractUnpausedData) EventType() EventType { return ContractUnpaused }

// SwapExecutedData is the payload of the `swap` contract event.
type SwapExecutedData struct {
	Sender     string `json:"sender"`
	RouteHash  string `json:"route_hash"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	Fee        string `json:"fee"`
}

func (d *SwapExecutedData) EventType() EventType { return SwapExecuted }

// IndexerLagData reports the indexer's current distance from the latest
// Horizon ledger, surfaced on /health and cmd/monitor's status stream.
type IndexerLagData struct {
	LagLedgers int64 `json:"lag_ledgers"`
	Mode       string `json:"mode"`
}

func (d *IndexerLagData) EventType() EventType { return IndexerLagChanged }

// PoolRegistryRefreshedData reports the outcome of a registry refresh
// cycle.
type PoolRegistryRefreshedData struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

func (d *PoolRegistryRefreshedData) EventType() EventType { return PoolRegistryRefreshed }

// PoolMarkedStaleData reports a pool descriptor exceeding the stale-refresh
// threshold (§4.4 policy: skip if stale for more than 3 refresh intervals).
type PoolMarkedStaleData struct {
	Pool              string `json:"pool"`
	ConsecutiveFails int    `json:"consecutive_fails"`
}

func (d *PoolMarkedStaleData) EventType() EventType { return PoolMarkedStale }

// EventWithData is one envelope flowing through the Bus.
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Data      EventData `json:"data"`
}

// MarshalJSON serializes the envelope with its typed Data payload inlined.
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{Alias: (*Alias)(e)}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}
	return json.Marshal(aux)
}

// UnmarshalJSON deserializes the envelope, dispatching Data to the concrete
// type registered for its Type.
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{Alias: (*Alias)(e)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case ContractInitialized:
		eventData = &ContractInitializedData{}
	case AdminChanged:
		eventData = &AdminChangedData{}
	case PoolRegistered:
		eventData = &PoolRegisteredData{}
	case ContractPaused:
		eventData = &ContractPausedData{}
	case ContractUnpaused:
		eventData = &ContractUnpausedData{}
	case SwapExecuted:
		eventData = &SwapExecutedData{}
	case IndexerLagChanged:
		eventData = &IndexerLagData{}
	case PoolRegistryRefreshed:
		eventData = &PoolRegistryRefreshedData{}
	case PoolMarkedStale:
		eventData = &PoolMarkedStaleData{}
	default:
		var raw map[string]interface{}
		if err := json.Unmarshal(aux.Data, &raw); err != nil {
			return err
		}
		e.Data = &GenericEventData{Type: aux.Type, Data: raw}
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events with no registered concrete type.
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

func (d *GenericEventData) EventType() EventType { return d.Type }

func (d *GenericEventData) MarshalJSON() ([]byte, error) { return json.Marshal(d.Data) }

func (d *GenericEventData) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &d.Data) }
