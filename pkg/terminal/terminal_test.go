package terminal

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu   sync.Mutex
	runs []*store.Run
}

func (m *memoryRecorder) RecordRun(r *store.Run) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return r.ID, nil
}

func (m *memoryRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func startServer(t *testing.T, recorder RunRecorder) (*TerminalHandler, string) {
	t.Helper()
	settings := shared.RunSettings{MaxSourceBytes: 1024, Timeout: time.Millisecond}
	h := NewTerminalHandler(settings, recorder, 4, []string{"*"})

	e := echo.New()
	e.GET("/ws", h.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readFrame(t, conn)
	require.Equal(t, shared.MessageTypeSession, msg.Type)
	require.NotEmpty(t, msg.SessionID)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg shared.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg shared.Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestSessionRunsProgram(t *testing.T) {
	recorder := &memoryRecorder{}
	_, url := startServer(t, recorder)
	conn := dial(t, url)

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: `
var a : int := 2;
var b : int := 10 * a + 10;
print b;
print "done"`})

	first := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeText, first.Type)
	assert.Equal(t, "30", first.Content)
	require.NotEmpty(t, first.RunID)

	second := readFrame(t, conn)
	assert.Equal(t, "done", second.Content)

	result := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeResult, result.Type)
	assert.Equal(t, first.RunID, result.RunID)
	assert.Equal(t, float64(30), result.Globals["b"])

	require.Eventually(t, func() bool { return recorder.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "30\ndone\n", recorder.runs[0].Stdout)
	assert.Equal(t, "guest", recorder.runs[0].Username)
}

func TestSessionPromptsForInput(t *testing.T) {
	recorder := &memoryRecorder{}
	_, url := startServer(t, recorder)
	conn := dial(t, url)

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: `var name : string; read name; print name`})

	request := readFrame(t, conn)
	require.Equal(t, shared.MessageTypeInputRequest, request.Type)

	send(t, conn, shared.Message{Type: shared.MessageTypeInput, Content: "Ada"})

	text := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeText, text.Type)
	assert.Equal(t, "Ada", text.Content)

	result := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeResult, result.Type)
	assert.Equal(t, "Ada", result.Globals["name"])

	require.Eventually(t, func() bool { return recorder.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Ada\n", recorder.runs[0].Stdin)
}

func TestSessionReportsProgramErrors(t *testing.T) {
	_, url := startServer(t, nil)
	conn := dial(t, url)

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: `print missing`})

	msg := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeError, msg.Type)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "UndeclaredVariableError", msg.Error.Kind)
	assert.Equal(t, 1, msg.Error.Line)
}

func TestSessionStopCancelsRun(t *testing.T) {
	_, url := startServer(t, nil)
	conn := dial(t, url)

	// The run timeout does not apply to sessions, so only stop ends this loop.
	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: `
var i : int;
var n : int := 0;
for i in 0 .. 2000000000 do n := n + 1; end for`})

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: `print i`})
	busy := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeError, busy.Type)
	assert.Contains(t, busy.Error.Message, "already running")

	send(t, conn, shared.Message{Type: shared.MessageTypeStop})
	stopped := readFrame(t, conn)
	assert.Equal(t, shared.MessageTypeError, stopped.Type)
	require.NotNil(t, stopped.Error)
	assert.Equal(t, "RuntimeError", stopped.Error.Kind)
	assert.NotEmpty(t, stopped.RunID)
}

func TestSessionStopWhileReading(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"string variable", `var s : string; read s; print "after"`},
		{"int variable", `var x : int; read x`},
		{"last statement", `var s : string; read s`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &memoryRecorder{}
			_, url := startServer(t, recorder)
			conn := dial(t, url)

			send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: tt.source})
			request := readFrame(t, conn)
			require.Equal(t, shared.MessageTypeInputRequest, request.Type)

			send(t, conn, shared.Message{Type: shared.MessageTypeStop})
			stopped := readFrame(t, conn)
			require.Equal(t, shared.MessageTypeError, stopped.Type)
			require.NotNil(t, stopped.Error)
			assert.Equal(t, "RuntimeError", stopped.Error.Kind)

			require.Eventually(t, func() bool { return recorder.count() == 1 }, 2*time.Second, 10*time.Millisecond)
			assert.Equal(t, "RuntimeError", recorder.runs[0].ErrorKind)
			assert.Empty(t, recorder.runs[0].Stdout)
		})
	}
}

func TestSessionRejectsInvalidFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "hello"},
		{"unknown type", `{"type":"shell","content":"ls"}`},
		{"input without run", `{"type":"input","content":"1"}`},
		{"control characters in input", `{"type":"input","content":"a\u0007b"}`},
	}

	_, url := startServer(t, nil)
	conn := dial(t, url)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			msg := readFrame(t, conn)
			assert.Equal(t, shared.MessageTypeError, msg.Type)
			assert.NotNil(t, msg.Error)
		})
	}
}

func TestClientCountTracksConnections(t *testing.T) {
	h, url := startServer(t, nil)
	conn := dial(t, url)
	assert.Equal(t, 1, h.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSecurityValidator(t *testing.T) {
	sv := NewSecurityValidator(8)

	tests := []struct {
		name    string
		msg     shared.Message
		wantErr bool
	}{
		{"small program", shared.Message{Type: shared.MessageTypeRun, Content: "print x"}, false},
		{"large program", shared.Message{Type: shared.MessageTypeRun, Content: "print xyz"}, true},
		{"tab in input", shared.Message{Type: shared.MessageTypeInput, Content: "a\tb"}, false},
		{"newline in input", shared.Message{Type: shared.MessageTypeInput, Content: "a\nb"}, true},
		{"stop", shared.Message{Type: shared.MessageTypeStop}, false},
		{"server frame", shared.Message{Type: shared.MessageTypeResult}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sv.ValidateMessage(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, sv.ValidateSessionID("8f14e45f-ceea-467f-a0e6-9d1c1b2f9f7a"))
	assert.Error(t, sv.ValidateSessionID(""))
	assert.Error(t, sv.ValidateSessionID("not-a-uuid"))
}

func TestClientManagerLimits(t *testing.T) {
	cm := NewClientManager(1)
	require.NoError(t, cm.AddClient("a", &Client{}))
	assert.Error(t, cm.AddClient("b", &Client{}))
	cm.RemoveClient("a")
	assert.Equal(t, 0, cm.GetClientCount())

	for i := 0; i < maxConnectsPerMinute; i++ {
		require.NoError(t, cm.CheckRateLimit("10.0.0.1"))
	}
	assert.Error(t, cm.CheckRateLimit("10.0.0.1"))
	assert.NoError(t, cm.CheckRateLimit("10.0.0.2"))
}
