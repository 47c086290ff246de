package dashboard

import (
	"encoding/json"
	"log"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomdb/loom/internal/sync"
)

// Handler translates backfill progress events into dashboard messages.
// It bridges between a sync.Manager and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger

	mu      stdsync.Mutex
	stats   StatsData
	started time.Time
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
		stats: StatsData{
			ByModel: make(map[string]int64),
		},
	}
}

// ProgressFunc returns a callback suitable for Manager.SetProgress that
// broadcasts every backfill event for the given device. The callback is
// safe for concurrent use; table events from parallel workers may
// interleave and are serialized here.
func (h *Handler) ProgressFunc(devicePubID uuid.UUID) sync.ProgressFunc {
	return func(ev sync.ProgressEvent) {
		switch ev.Phase {
		case sync.ProgressStarted:
			h.onStarted(devicePubID)
		case sync.ProgressTable:
			h.onTableProgress(ev.Model, ev.Rows)
		case sync.ProgressFinished:
			h.onFinished(devicePubID)
		}
	}
}

func (h *Handler) onStarted(devicePubID uuid.UUID) {
	h.mu.Lock()
	h.started = time.Now()
	h.stats = StatsData{ByModel: make(map[string]int64)}
	h.mu.Unlock()

	h.logger.Printf("Backfill started for device %s", devicePubID)
	h.send(MessageTypeBackfillStarted, BackfillStartedData{DevicePubID: devicePubID.String()})
}

func (h *Handler) onTableProgress(model string, rows int64) {
	h.mu.Lock()
	h.stats.Total += rows - h.stats.ByModel[model]
	h.stats.ByModel[model] = rows
	h.mu.Unlock()

	h.send(MessageTypeTableProgress, TableProgressData{Model: model, Rows: rows})
	h.broadcastStats()
}

func (h *Handler) onFinished(devicePubID uuid.UUID) {
	h.mu.Lock()
	total := h.stats.Total
	duration := time.Since(h.started)
	h.mu.Unlock()

	h.logger.Printf("Backfill finished for device %s: %d operations in %v", devicePubID, total, duration)
	h.send(MessageTypeBackfillFinished, BackfillFinishedData{
		DevicePubID: devicePubID.String(),
		Operations:  total,
		Duration:    duration,
	})
	h.broadcastStats()
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	h.mu.Lock()
	stats := StatsData{Total: h.stats.Total, ByModel: make(map[string]int64, len(h.stats.ByModel))}
	for k, v := range h.stats.ByModel {
		stats.ByModel[k] = v
	}
	h.mu.Unlock()

	h.send(MessageTypeStats, stats)
}

func (h *Handler) send(typ MessageType, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := StatsData{Total: h.stats.Total, ByModel: make(map[string]int64, len(h.stats.ByModel))}
	for k, v := range h.stats.ByModel {
		stats.ByModel[k] = v
	}
	return stats
}
