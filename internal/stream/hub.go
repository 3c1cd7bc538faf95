// Package stream broadcasts backtest events to websocket clients.
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/position"
	"hod-momentum-lab/internal/reporting"
)

// Message types.
const (
	TypeRunStarted     = "run_started"
	TypeRunFinished    = "run_finished"
	TypePositionOpened = "position_opened"
	TypeTrade          = "trade"
	TypeSymbolExcluded = "symbol_excluded"
)

// ErrHubClosed is returned when a client connects after Close.
var ErrHubClosed = errors.New("stream hub closed")

// Message is the JSON frame sent to clients.
type Message struct {
	Type     string                  `json:"type"`
	JobID    string                  `json:"job_id,omitempty"`
	RunID    string                  `json:"run_id,omitempty"`
	Symbol   string                  `json:"symbol,omitempty"`
	Trade    *reporting.LedgerRecord `json:"trade,omitempty"`
	Position *PositionEvent          `json:"position,omitempty"`
	Reason   string                  `json:"reason,omitempty"`
	Trades   int                     `json:"trades,omitempty"`
}

// PositionEvent describes a freshly opened position.
type PositionEvent struct {
	EntryTime  string  `json:"entry_time"`
	EntryPrice float64 `json:"entry_price"`
	Shares     int64   `json:"shares"`
	StopPrice  float64 `json:"stop_price"`
	TakeProfit float64 `json:"take_profit_price"`
}

// Recorder receives hub statistics. *observability.Metrics satisfies it.
type Recorder interface {
	SetStreamClients(n int)
	RecordStreamMessage(dropped int)
}

// HubConfig configures client handling.
type HubConfig struct {
	// SendBuffer is the per-client queue length; a full queue drops messages.
	SendBuffer int
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// PingInterval is the interval for ping frames.
	PingInterval time.Duration
	// ReadTimeout closes clients that stop answering pings.
	ReadTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connected client. Slow clients lose
// messages rather than blocking the backtest.
type Hub struct {
	cfg      HubConfig
	logger   zerolog.Logger
	recorder Recorder
	loc      *time.Location
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub. A nil recorder is allowed.
func NewHub(cfg HubConfig, logger zerolog.Logger, recorder Recorder, loc *time.Location) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		loc:      loc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*client),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, h.cfg.SendBuffer)}
	if err := h.register(c); err != nil {
		_ = conn.Close()
		return
	}
	h.logger.Debug().Str("client_id", c.id.String()).Msg("stream client connected")

	h.wg.Add(2)
	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c.id] = c
	h.reportClients()
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.reportClients()
}

// reportClients must be called with mu held.
func (h *Hub) reportClients() {
	if h.recorder != nil {
		h.recorder.SetStreamClients(len(h.clients))
	}
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	if h.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		})
	}
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug().Err(err).Str("client_id", c.id.String()).Msg("stream write failed")
				return
			}
		case <-ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client and returns how many were skipped.
func (h *Hub) Broadcast(msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal stream message")
		return 0
	}

	h.mu.RLock()
	dropped := 0
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if h.recorder != nil {
		h.recorder.RecordStreamMessage(dropped)
	}
	return dropped
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.reportClients()
	h.mu.Unlock()
	h.wg.Wait()
}

// RunStarted announces a job. The run id is only known once the inputs
// have been fingerprinted, so clients correlate events by job id.
func (h *Hub) RunStarted(jobID string) {
	h.Broadcast(Message{Type: TypeRunStarted, JobID: jobID})
}

// RunFinished announces a completed job with its run id and ledger size.
func (h *Hub) RunFinished(jobID, runID string, trades int) {
	h.Broadcast(Message{Type: TypeRunFinished, JobID: jobID, RunID: runID, Trades: trades})
}

// Observer returns a backtest.Observer that tags events with jobID.
func (h *Hub) Observer(jobID string) backtest.Observer {
	return &jobObserver{hub: h, jobID: jobID}
}

type jobObserver struct {
	hub   *Hub
	jobID string
}

func (o *jobObserver) OnPositionOpened(p position.Position) {
	o.hub.Broadcast(Message{
		Type:   TypePositionOpened,
		JobID:  o.jobID,
		Symbol: p.Symbol,
		Position: &PositionEvent{
			EntryTime:  p.EntryTime.In(o.hub.loc).Format(time.RFC3339),
			EntryPrice: p.EntryPrice,
			Shares:     p.Shares,
			StopPrice:  p.StopPrice,
			TakeProfit: p.TakeProfitPrice,
		},
	})
}

func (o *jobObserver) OnTrade(t domain.Trade) {
	rec := reporting.LedgerRecords([]domain.Trade{t}, o.hub.loc)[0]
	o.hub.Broadcast(Message{Type: TypeTrade, JobID: o.jobID, RunID: t.RunID, Symbol: t.Symbol, Trade: &rec})
}

func (o *jobObserver) OnSymbolExcluded(symbol, reason string) {
	o.hub.Broadcast(Message{Type: TypeSymbolExcluded, JobID: o.jobID, Symbol: symbol, Reason: reason})
}

var _ backtest.Observer = (*jobObserver)(nil)
