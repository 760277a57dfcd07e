package terminal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antibyte/minipl/pkg/auth"
	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/minipl"
	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// RunRecorder persists finished runs. *store.Store implements it.
type RunRecorder interface {
	RecordRun(r *store.Run) (string, error)
}

// TerminalHandler serves the interactive playground over WebSockets.
type TerminalHandler struct {
	clients   *ClientManager
	validator *SecurityValidator
	recorder  RunRecorder
	settings  shared.RunSettings
	upgrader  websocket.Upgrader
}

// NewTerminalHandler creates a handler. Sessions are not bound by the run
// timeout; they end on stop, disconnect or the loop iteration limit.
// recorder may be nil. allowedOrigins lists permitted Origin headers,
// "*" allows every origin.
func NewTerminalHandler(settings shared.RunSettings, recorder RunRecorder, maxClients int, allowedOrigins []string) *TerminalHandler {
	settings.Timeout = 0
	return &TerminalHandler{
		clients:   NewClientManager(maxClients),
		validator: NewSecurityValidator(settings.MaxSourceBytes),
		recorder:  recorder,
		settings:  settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		logger.SecurityWarn("WebSocket origin %s rejected", origin)
		return false
	}
}

// HandleWebSocket upgrades the request and serves the session until the
// client disconnects.
func (h *TerminalHandler) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	if err := h.clients.CheckRateLimit(remoteAddr); err != nil {
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	}

	ctx := c.Request().Context()
	sessionID := auth.SessionIDFromContext(ctx)
	if err := h.validator.ValidateSessionID(sessionID); err != nil || h.clients.HasClient(sessionID) {
		sessionID = uuid.New().String()
	}
	username := auth.UsernameFromContext(ctx)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.WebSocketWarn("upgrade failed for %s: %v", remoteAddr, err)
		return nil
	}

	client := newClient(conn, h, sessionID, username, remoteAddr)
	if err := h.clients.AddClient(sessionID, client); err != nil {
		logger.WebSocketWarn("rejecting %s: %v", remoteAddr, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(getWriteWait()))
		conn.Close()
		return nil
	}
	logger.WebSocketInfo("session %s opened for %s from %s", sessionID, username, remoteAddr)

	go client.writePump()
	client.Send(shared.Message{Type: shared.MessageTypeSession, SessionID: sessionID, Content: username})
	client.readPump()
	return nil
}

func (h *TerminalHandler) cleanupClient(c *Client) {
	c.Close()
	h.clients.RemoveClient(c.sessionID)
	logger.WebSocketInfo("session %s closed", c.sessionID)
}

// ClientCount returns the number of open sessions.
func (h *TerminalHandler) ClientCount() int {
	return h.clients.GetClientCount()
}

// Shutdown closes every open session.
func (h *TerminalHandler) Shutdown() {
	h.clients.CloseAll()
}

var errAlreadyRunning = errors.New("a program is already running")

// startRun executes source in the background. Output, input requests and
// the final result or error are sent as frames tagged with a new run ID.
func (c *Client) startRun(source string) error {
	c.mu.Lock()
	if c.runCancel != nil {
		c.mu.Unlock()
		return errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.runCancel = cancel
	c.mu.Unlock()

	// Lines typed before the program asked for them are dropped.
	for drained := false; !drained; {
		select {
		case <-c.input:
		default:
			drained = true
		}
	}

	runID := uuid.New().String()
	logger.Info(logger.AreaTerminal, "session %s starting run %s", c.sessionID, runID)

	go func() {
		in := &sessionInput{ctx: ctx, client: c, runID: runID}
		out := &lineWriter{client: c, runID: runID}
		outcome := shared.Run(ctx, c.handler.settings, source, nil,
			minipl.WithInput(in), minipl.WithOutput(out))
		out.Flush()

		cancel()
		c.mu.Lock()
		c.runCancel = nil
		c.mu.Unlock()

		c.handler.record(c, runID, source, in.transcript.String(), out.transcript.String(), outcome)

		if outcome.Err != nil {
			logger.Debug(logger.AreaTerminal, "run %s failed: %v", runID, outcome.Err)
			c.sendError(runID, outcome.Err)
			return
		}
		c.Send(shared.Message{
			Type:    shared.MessageTypeResult,
			RunID:   runID,
			Content: outcome.Result.String(),
			Globals: outcome.Globals,
		})
	}()
	return nil
}

func (h *TerminalHandler) record(c *Client, runID, source, stdin, stdout string, outcome *shared.Outcome) {
	if h.recorder == nil {
		return
	}
	run := &store.Run{
		ID:       runID,
		Username: c.username,
		Source:   source,
		Stdin:    stdin,
		Stdout:   stdout,
		Result:   outcome.Result.String(),
		Globals:  outcome.Globals,
		Duration: outcome.Duration,
	}
	if info := shared.NewErrorInfo(outcome.Err); info != nil {
		run.ErrorKind = info.Kind
		run.ErrorMessage = info.Message
	}
	if _, err := h.recorder.RecordRun(run); err != nil {
		logger.Error(logger.AreaDatabase, "failed to record run %s: %v", runID, err)
	}
}
