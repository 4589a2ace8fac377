package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
)

const (
	maxClientsPerChannel = 50
	sendBufferSize       = 16
	writeTimeout         = 5 * time.Second
)

var (
	ErrChannelFull = errors.New("too many clients on channel")
	ErrHubStopped  = errors.New("hub stopped")
)

var _ domain.Renderer = (*Hub)(nil)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	channel string
	conn    *websocket.Conn
	errCh   chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	channel string
	conn    *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	channel string
	data    []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	channel string
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub pushes rating views to the websocket clients subscribed to a channel.
// All state is owned by a single goroutine fed through cmdCh.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[string]map[*websocket.Conn]*clientWriter
	stopped chan struct{}
	metrics *metrics.WebSocketMetrics
}

// NewHub starts the hub goroutine. m may be nil.
func NewHub(m *metrics.WebSocketMetrics) *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[string]map[*websocket.Conn]*clientWriter),
		stopped: make(chan struct{}),
		metrics: m,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			c.errCh <- h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.channel, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients[c.channel])
		case cmdStop:
			h.handleStop()
			close(h.stopped)
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) error {
	clients, exists := h.clients[c.channel]
	if !exists {
		clients = make(map[*websocket.Conn]*clientWriter)
		h.clients[c.channel] = clients
	}
	if len(clients) >= maxClientsPerChannel {
		slog.Warn("Rejecting websocket client, channel full", "channel", c.channel, "max", maxClientsPerChannel)
		return fmt.Errorf("%w: max %d", ErrChannelFull, maxClientsPerChannel)
	}

	clients[c.conn] = newClientWriter(c.conn)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Debug("Websocket client registered", "channel", c.channel, "clients", len(clients))
	return nil
}

func (h *Hub) handleUnregister(channel string, conn *websocket.Conn) {
	clients, exists := h.clients[channel]
	if !exists {
		return
	}
	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}

	if len(clients) == 0 {
		delete(h.clients, channel)
	}
	slog.Debug("Websocket client unregistered", "channel", channel, "remaining", len(clients))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.clients[c.channel]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
			if h.metrics != nil {
				h.metrics.ViewsPushed.Inc()
			}
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Info("Disconnecting slow websocket client", "channel", c.channel)
		if h.metrics != nil {
			h.metrics.SlowClientsEvicted.Inc()
		}
		h.handleUnregister(c.channel, conn)
	}
}

func (h *Hub) handleStop() {
	for channel, clients := range h.clients {
		for conn := range clients {
			h.handleUnregister(channel, conn)
		}
	}
}

// send delivers cmd unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// --- Public API ---

// Register subscribes conn to channel. The hub owns writes to conn afterwards.
func (h *Hub) Register(channel string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(cmdRegister{channel: channel, conn: conn, errCh: errCh}) {
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return ErrHubStopped
	}
}

// Unregister removes conn from channel and closes it.
func (h *Hub) Unregister(channel string, conn *websocket.Conn) {
	h.send(cmdUnregister{channel: channel, conn: conn})
}

// Render pushes view as JSON to every client on channel.
func (h *Hub) Render(ctx context.Context, channel string, view domain.View) {
	data, err := json.Marshal(view)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode rating view", "channel", channel, "error", err)
		return
	}
	h.send(cmdBroadcast{channel: channel, data: data})
}

// ClientCount is the number of clients subscribed to channel.
func (h *Hub) ClientCount(channel string) int {
	replyCh := make(chan int, 1)
	if !h.send(cmdClientCount{channel: channel, replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.stopped:
		return 0
	}
}

// Stop closes every connection and ends the hub goroutine. Later calls are no-ops.
func (h *Hub) Stop() {
	h.send(cmdStop{})
	<-h.stopped
}
