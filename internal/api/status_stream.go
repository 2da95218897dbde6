package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// statusStreamInterval sets how often the server pushes a status frame to
// a connected monitor client (§6, §12 supplement).
const statusStreamInterval = 5 * time.Second

// statusFrame is one message pushed over the operator status stream.
type statusFrame struct {
	IndexerLagLedgers int64  `json:"indexer_lag_ledgers"`
	ActivePairs       int    `json:"active_pairs"`
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
}

// handleStatusStream implements the cmd/monitor-facing websocket feed:
// grounded in the corpus's own websocket-based market-status broadcaster,
// retargeted at this system's indexer-lag/pool-staleness/health signals
// instead of broker connectivity (§12 supplement).
func (h *Handler) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("status stream upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "server closing")

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(statusStreamInterval)
	defer ticker.Stop()

	for {
		if err := h.writeStatusFrame(ctx, conn); err != nil {
			h.log.Debug().Err(err).Msg("status stream write failed, closing")
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) writeStatusFrame(ctx context.Context, conn *websocket.Conn) error {
	frame := statusFrame{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if h.health != nil {
		frame.IndexerLagLedgers = h.health.IndexerLagLedgers()
	}
	if pairs, err := h.store.ActivePairs(ctx); err == nil {
		frame.ActivePairs = len(pairs)
	} else {
		frame.Status = "degraded"
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
