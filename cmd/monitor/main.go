// Command monitor is a terminal dashboard that dials a running cmd/server
// instance's operator status stream and prints indexer-lag, active-pair,
// and overall health signals as they arrive. Its dial/reconnect-with-backoff
// loop is grounded in the corpus's own websocket market-status broadcaster,
// retargeted from broker connectivity onto this system's own health
// signals (§12 supplement).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/stellar-aggregon/aggregon/pkg/logger"
)

const (
	dialTimeout = 10 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// statusFrame mirrors internal/api's wire shape for the stream.
type statusFrame struct {
	IndexerLagLedgers int64  `json:"indexer_lag_ledgers"`
	ActivePairs       int    `json:"active_pairs"`
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
}

func main() {
	addr := flag.String("addr", "ws://localhost:8001/ws/status", "status stream URL")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLoop(ctx, *addr, log)
}

// runLoop dials the status stream and redials with a linearly growing,
// capped backoff on disconnect, giving up after maxReconnectAttempts consecutive failures.
func runLoop(ctx context.Context, addr string, log zerolog.Logger) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamOnce(ctx, addr, log)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 0
			continue
		}

		attempt++
		if attempt > maxReconnectAttempts {
			log.Error().Int("attempts", attempt).Msg("giving up after max reconnect attempts")
			return
		}
		delay := reconnectDelay(attempt)
		log.Warn().Err(err).Dur("retry_in", delay).Int("attempt", attempt).Msg("status stream disconnected, reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// streamOnce dials once and prints frames until the connection drops or
// ctx is cancelled.
func streamOnce(ctx context.Context, addr string, log zerolog.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, addr, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial status stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "monitor exiting")

	log.Info().Str("addr", addr).Msg("connected to status stream")

	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read status frame: %w", err)
		}

		var frame statusFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Error().Err(err).Msg("malformed status frame")
			continue
		}
		printFrame(frame)
	}
}

func printFrame(f statusFrame) {
	fmt.Printf("[%s] status=%-9s indexer_lag=%d ledgers  active_pairs=%d\n",
		f.Timestamp, f.Status, f.IndexerLagLedgers, f.ActivePairs)
}

func reconnectDelay(attempt int) time.Duration {
	delay := baseReconnectDelay * time.Duration(attempt)
	if delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}
