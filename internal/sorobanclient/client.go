// Package sorobanclient wraps Soroban RPC (pool reserve reads, router
// contract simulation) behind domain.SorobanClient, with the same
// transient/fatal failure classification as internal/horizonclient (§7).
package sorobanclient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	rpcclient "github.com/stellar/stellar-rpc/client"
	"github.com/stellar/stellar-rpc/protocol"

	"github.com/stellar-aggregon/aggregon/internal/domain"
)

const (
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 30 * time.Second
	retryAttempts  = 5
)

// simulationSourceAccount is a throwaway keypair used only to shape
// read-only simulation transactions; it never signs or submits anything.
var simulationSourceAccount = keypair.MustRandom().Address()

// Client implements domain.SorobanClient against a live Soroban RPC node.
type Client struct {
	rpc               *rpcclient.Client
	networkPassphrase string
	log               zerolog.Logger
}

// New builds a Client pointed at rpcURL for the given network passphrase
// (network.TestNetworkPassphrase or network.PublicNetworkPassphrase).
func New(rpcURL, networkPassphrase string, log zerolog.Logger) *Client {
	return &Client{
		rpc:               rpcclient.NewClient(rpcURL, nil),
		networkPassphrase: networkPassphrase,
		log:               log.With().Str("component", "sorobanclient").Logger(),
	}
}

// GetPoolReserves simulates the pool contract's reserves-read entrypoint
// and decodes the (reserve_a, reserve_b, fee_bps) tuple from the result
// (§4.4).
func (c *Client) GetPoolReserves(ctx context.Context, poolAddress string) (reserveA, reserveB, feeBps int64, err error) {
	invocation := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contractAddressFromStrkey(poolAddress),
				FunctionName:    "get_reserves",
				Args:            nil,
			},
		},
		SourceAccount: simulationSourceAccount,
	}

	resp, err := c.simulate(ctx, invocation)
	if err != nil {
		return 0, 0, 0, err
	}
	if resp.Error != "" {
		return 0, 0, 0, domain.Wrap(domain.KindFatalExternal, "soroban_simulation_error", "get_reserves", fmt.Errorf("%s", resp.Error))
	}

	vals, err := decodeReservesResult(resp)
	if err != nil {
		return 0, 0, 0, domain.Wrap(domain.KindInvariantViolation, "bad_soroban_result", "decoding reserves result", err)
	}
	return vals[0], vals[1], vals[2], nil
}

// SimulateExecuteSwap performs a read-only simulation of the router
// contract's execute_swap entrypoint for the given route, returning the
// resource profile and pass/fail verdict Soroban itself computed (§4.6).
func (c *Client) SimulateExecuteSwap(ctx context.Context, contractID string, amountIn int64, route domain.Route) (domain.ResourceEstimate, error) {
	args, err := routeToScVals(amountIn, route)
	if err != nil {
		return domain.ResourceEstimate{}, domain.Wrap(domain.KindInvariantViolation, "bad_route_encoding", "encoding route for simulation", err)
	}

	invocation := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contractAddressFromStrkey(contractID),
				FunctionName:    "execute_swap",
				Args:            args,
			},
		},
		SourceAccount: simulationSourceAccount,
	}

	resp, err := c.simulate(ctx, invocation)
	if err != nil {
		return domain.ResourceEstimate{}, err
	}

	if resp.Error != "" {
		return domain.ResourceEstimate{
			WillSucceed: false,
			Reason:      resp.Error,
		}, nil
	}

	reads, writes := footprintCounts(resp)
	return domain.ResourceEstimate{
		EstimatedCPU:  int64(resp.Cost.CPUInstructions),
		StorageReads:  reads,
		StorageWrites: writes,
		Events:        len(resp.Events),
		WillSucceed:   true,
	}, nil
}

func (c *Client) simulate(ctx context.Context, invocation *txnbuild.InvokeHostFunction) (protocol.SimulateTransactionResponse, error) {
	tx, err := buildSimulationEnvelope(invocation, c.networkPassphrase)
	if err != nil {
		return protocol.SimulateTransactionResponse{}, domain.Wrap(domain.KindInvariantViolation, "bad_simulation_tx", "building simulation envelope", err)
	}

	var resp protocol.SimulateTransactionResponse
	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		resp, lastErr = c.rpc.SimulateTransaction(ctx, protocol.SimulateTransactionRequest{Transaction: tx})
		if lastErr == nil {
			return resp, nil
		}
		if attempt == retryAttempts {
			break
		}
		c.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("retrying soroban rpc call")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return protocol.SimulateTransactionResponse{}, ctx.Err()
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return protocol.SimulateTransactionResponse{}, domain.Wrap(domain.KindTransientExternal, "soroban_rpc_unreachable", "simulate transaction", lastErr)
}

func buildSimulationEnvelope(invocation *txnbuild.InvokeHostFunction, networkPassphrase string) (string, error) {
	account := txnbuild.NewSimpleAccount(simulationSourceAccount, 0)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: false,
		Operations:           []txnbuild.Operation{invocation},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}
	env, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("encode transaction envelope: %w", err)
	}
	_ = network.TestNetworkPassphrase // kept for reference; signing is not required for simulation
	return env, nil
}

func contractAddressFromStrkey(address string) xdr.ScAddress {
	contractID, err := xdr.NewContractId(address)
	if err != nil {
		// Caller-provided addresses are not validated before this point; a
		// malformed one surfaces as a simulation error rather than a panic.
		return xdr.ScAddress{}
	}
	return contractID
}

func decodeReservesResult(resp protocol.SimulateTransactionResponse) ([3]int64, error) {
	if len(resp.Results) == 0 {
		return [3]int64{}, fmt.Errorf("simulation returned no results")
	}
	var scVal xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(resp.Results[0].XDR, &scVal); err != nil {
		return [3]int64{}, fmt.Errorf("decode result xdr: %w", err)
	}
	vec, ok := scVal.GetVec()
	if !ok || vec == nil || len(*vec) != 3 {
		return [3]int64{}, fmt.Errorf("expected a 3-tuple (reserve_a, reserve_b, fee_bps)")
	}
	var out [3]int64
	for i, v := range *vec {
		n, ok := v.GetI128()
		if !ok {
			return [3]int64{}, fmt.Errorf("element %d is not an i128", i)
		}
		out[i] = int64(n.Lo)
	}
	return out, nil
}

func footprintCounts(resp protocol.SimulateTransactionResponse) (reads, writes int) {
	if resp.TransactionData == "" {
		return 0, 0
	}
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(resp.TransactionData, &data); err != nil {
		return 0, 0
	}
	reads = len(data.Resources.Footprint.ReadOnly)
	writes = len(data.Resources.Footprint.ReadWrite)
	return reads, writes
}
