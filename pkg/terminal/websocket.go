package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/shared"

	"github.com/gorilla/websocket"
)

// WebSocket settings come from the [Network] section.

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 60*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

const (
	sendBufferSize  = 256
	inputBufferSize = 16
)

var errClientClosed = errors.New("client connection closed")

// Client is one connected terminal. It runs at most one program at a time.
type Client struct {
	conn       *websocket.Conn
	handler    *TerminalHandler
	sessionID  string
	username   string
	remoteAddr string

	send      chan []byte
	shutdown  chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	runCancel context.CancelFunc // non-nil while a program runs
	input     chan string
	lastPong  time.Time
}

func newClient(conn *websocket.Conn, handler *TerminalHandler, sessionID, username, remoteAddr string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		handler:    handler,
		sessionID:  sessionID,
		username:   username,
		remoteAddr: remoteAddr,
		send:       make(chan []byte, sendBufferSize),
		shutdown:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		input:      make(chan string, inputBufferSize),
		lastPong:   time.Now(),
	}
}

// Send queues msg for the write pump. It blocks while the queue is full
// and fails once the client is closed.
func (c *Client) Send(msg shared.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.shutdown:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.shutdown:
		return errClientClosed
	}
}

func (c *Client) sendError(runID string, err error) {
	c.Send(shared.Message{Type: shared.MessageTypeError, RunID: runID, Error: shared.NewErrorInfo(err)})
}

// Close stops the running program and both pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.shutdown)
	})
}

// readPump dispatches incoming frames until the connection fails.
func (c *Client) readPump() {
	defer c.handler.cleanupClient(c)

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("unexpected close for session %s from %s: %v", c.sessionID, c.remoteAddr, err)
			} else {
				logger.WebSocketDebug("connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.SecurityWarn("invalid JSON from %s: %v", c.remoteAddr, err)
			c.sendError("", err)
			continue
		}
		if err := c.handler.validator.ValidateMessage(msg); err != nil {
			logger.SecurityWarn("rejected %q frame from %s: %v", msg.Type, c.remoteAddr, err)
			c.sendError("", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg shared.Message) {
	switch msg.Type {
	case shared.MessageTypeRun:
		if err := c.startRun(msg.Content); err != nil {
			c.sendError("", err)
		}
	case shared.MessageTypeInput:
		c.mu.Lock()
		running := c.runCancel != nil
		c.mu.Unlock()
		if !running {
			c.sendError("", errors.New("no program is running"))
			return
		}
		select {
		case c.input <- msg.Content:
		default:
			c.sendError("", errors.New("too many pending input lines"))
		}
	case shared.MessageTypeStop:
		c.mu.Lock()
		if c.runCancel != nil {
			c.runCancel()
		}
		c.mu.Unlock()
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
// Each queued message becomes its own frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketError("failed to send ping to %s: %v", c.remoteAddr, err)
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// sessionInput feeds read statements from input frames. Every read on an
// empty buffer asks the client for a line first.
type sessionInput struct {
	ctx        context.Context
	client     *Client
	runID      string
	pending    []byte
	transcript strings.Builder
}

func (in *sessionInput) Read(p []byte) (int, error) {
	if len(in.pending) == 0 {
		if err := in.client.Send(shared.Message{Type: shared.MessageTypeInputRequest, RunID: in.runID}); err != nil {
			return 0, err
		}
		select {
		case line := <-in.client.input:
			line += "\n"
			in.transcript.WriteString(line)
			in.pending = []byte(line)
		case <-in.ctx.Done():
			return 0, in.ctx.Err()
		}
	}
	n := copy(p, in.pending)
	in.pending = in.pending[n:]
	return n, nil
}

// lineWriter sends one text frame per complete output line.
type lineWriter struct {
	client     *Client
	runID      string
	buf        bytes.Buffer
	transcript strings.Builder
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.transcript.Write(p)
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := string(w.buf.Next(idx + 1))
		if err := w.emit(strings.TrimSuffix(line, "\n")); err != nil {
			return 0, err
		}
	}
}

// Flush sends a trailing partial line.
func (w *lineWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	line := w.buf.String()
	w.buf.Reset()
	return w.emit(line)
}

func (w *lineWriter) emit(line string) error {
	return w.client.Send(shared.Message{Type: shared.MessageTypeText, Content: line, RunID: w.runID})
}
