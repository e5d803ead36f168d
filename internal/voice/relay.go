package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/assistant"
	"github.com/odontosync/backend/internal/models"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Message is the browser-facing WebSocket envelope.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Config holds the provider endpoint for live sessions.
type Config struct {
	ProviderURL string
	Model       string
	SampleRate  int
}

// Identity is what the relay needs from a validated token.
type Identity struct {
	Name     string
	Email    string
	Provider string
}

// Provider wire shapes (bidirectional live protocol).

type providerSetup struct {
	Setup struct {
		Model string `json:"model"`
	} `json:"setup"`
}

type providerAudioIn struct {
	RealtimeInput struct {
		Media struct {
			Data     string `json:"data"`
			MimeType string `json:"mimeType"`
		} `json:"media"`
	} `json:"realtimeInput"`
}

type providerEvent struct {
	ToolCall *struct {
		FunctionCalls []struct {
			ID   string          `json:"id"`
			Name string          `json:"name"`
			Args json.RawMessage `json:"args"`
		} `json:"functionCalls"`
	} `json:"toolCall,omitempty"`
	ServerContent json.RawMessage `json:"serverContent,omitempty"`
}

type providerToolResponse struct {
	ToolResponse struct {
		FunctionResponses []functionResponse `json:"functionResponses"`
	} `json:"toolResponse"`
}

type functionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// relayConn owns one live session: browser socket on one side, provider
// socket on the other, each with a single writer goroutine.
type relayConn struct {
	sess         *Session
	browser      *websocket.Conn
	provider     *websocket.Conn
	browserSend  chan Message
	providerSend chan any
	done         chan struct{} // closed on session teardown, releases the write pumps
	audioMime    string
	dispatcher   *assistant.Dispatcher
	logger       *zap.Logger
}

// navigator applies navigation tool calls as pure overwrites pushed to the
// browser; last write wins against manual navigation.
type navigator struct{ c *relayConn }

func (n navigator) NavigateTo(tab string) {
	data, _ := json.Marshal(map[string]string{"tab": tab})
	n.c.sendBrowser(Message{Event: "navigate", Data: data})
}

func (n navigator) SetBusinessMode(mode models.BusinessMode) {
	data, _ := json.Marshal(map[string]string{"mode": string(mode)})
	n.c.sendBrowser(Message{Event: "mode", Data: data})
}

// ServeWs upgrades the voice WebSocket and runs the relay. The demo identity
// provider is rejected before any audio or provider resource is opened.
func ServeWs(cfg Config, dispatcher *assistant.Dispatcher, logger *zap.Logger, validate func(token string) (Identity, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		ident, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if ident.Provider == "demo" {
			c.JSON(http.StatusForbidden, gin.H{"error": "voice commands are not available on the demo account"})
			return
		}
		if cfg.ProviderURL == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice provider not configured"})
			return
		}

		browser, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("voice websocket upgrade failed", zap.Error(err))
			return
		}

		rc := &relayConn{
			sess:         NewSession(logger),
			browser:      browser,
			browserSend:  make(chan Message, 256),
			providerSend: make(chan any, 256),
			done:         make(chan struct{}),
			audioMime:    audioMimeType(cfg.SampleRate),
			dispatcher:   dispatcher,
			logger:       logger,
		}
		rc.sess.OnStateChange(func(st State) {
			data, _ := json.Marshal(map[string]bool{"listening": st.Listening()})
			rc.sendBrowser(Message{Event: "listening", Data: data})
		})
		rc.sess.AddTeardown(func() {
			close(rc.done)
			_ = browser.Close()
		})

		_ = rc.sess.Begin()
		go rc.browserWritePump()
		go rc.connectProvider(c.Request.Context(), cfg)
		rc.browserReadPump()
	}
}

// connectProvider dials the live endpoint and starts the provider loops. If
// the session was cancelled while dialing, the teardown hook added after the
// fact closes the fresh connection immediately.
func (rc *relayConn) connectProvider(ctx context.Context, cfg Config) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.ProviderURL, nil)
	if err != nil {
		rc.sess.Fail(fmt.Errorf("provider dial: %w", err))
		return
	}
	rc.provider = conn
	rc.sess.AddTeardown(func() {
		_ = conn.Close()
	})
	if rc.sess.State().Terminal() {
		return
	}
	if err := rc.sess.ProviderOpen(); err != nil {
		return
	}

	var setup providerSetup
	setup.Setup.Model = cfg.Model
	rc.sendProvider(setup)

	go rc.providerWritePump()
	rc.providerReadPump()
}

// browserReadPump consumes audio chunks and the explicit close event.
func (rc *relayConn) browserReadPump() {
	defer rc.sess.Close()

	rc.browser.SetReadLimit(1 << 20)
	_ = rc.browser.SetReadDeadline(time.Now().Add(pongWait))
	rc.browser.SetPongHandler(func(string) error {
		_ = rc.browser.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := rc.browser.ReadJSON(&msg); err != nil {
			return
		}
		_ = rc.browser.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Event {
		case "audio":
			var payload struct {
				Chunk string `json:"chunk"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Chunk == "" {
				continue
			}
			if rc.sess.State() != StateOpen {
				continue // drop audio until the provider session is open
			}
			var in providerAudioIn
			in.RealtimeInput.Media.Data = payload.Chunk
			in.RealtimeInput.Media.MimeType = rc.audioMime
			rc.sendProvider(in)
		case "close":
			return
		default:
			// ignore
		}
	}
}

// providerReadPump consumes tool calls and audio from the provider. Any read
// error or remote close errors the session; there is no reconnect.
func (rc *relayConn) providerReadPump() {
	for {
		_, raw, err := rc.provider.ReadMessage()
		if err != nil {
			rc.sess.Fail(fmt.Errorf("provider read: %w", err))
			return
		}
		var ev providerEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.ToolCall != nil {
			rc.handleToolCall(ev)
			continue
		}
		if len(ev.ServerContent) > 0 {
			rc.sendBrowser(Message{Event: "audio", Data: ev.ServerContent})
		}
	}
}

// handleToolCall decodes, executes and acknowledges each function call.
// Every call is answered with a response correlated by its ID before the
// session counts it as handled.
func (rc *relayConn) handleToolCall(ev providerEvent) {
	if err := rc.sess.ToolCall(); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var resp providerToolResponse
	for _, fc := range ev.ToolCall.FunctionCalls {
		result := "rejected"
		act, err := assistant.Decode(assistant.RawAction{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		if err == nil {
			res := rc.dispatcher.Execute(ctx, act, navigator{rc})
			result = res.Message
			if !res.OK {
				result = "failed: " + res.Message
			}
		}
		resp.ToolResponse.FunctionResponses = append(resp.ToolResponse.FunctionResponses, functionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"result": result},
		})
	}
	rc.sendProvider(resp)
}

func (rc *relayConn) browserWritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = rc.browser.Close()
	}()

	for {
		select {
		case <-rc.done:
			_ = rc.browser.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg, ok := <-rc.browserSend:
			if !ok {
				_ = rc.browser.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = rc.browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.browser.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = rc.browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.browser.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (rc *relayConn) providerWritePump() {
	for {
		select {
		case <-rc.done:
			return
		case msg := <-rc.providerSend:
			_ = rc.provider.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.provider.WriteJSON(msg); err != nil {
				rc.sess.Fail(fmt.Errorf("provider write: %w", err))
				return
			}
		}
	}
}

// audioMimeType formats the inbound PCM MIME type for the configured capture
// rate. The provider expects 16 kHz mono when nothing else is negotiated.
func audioMimeType(sampleRate int) string {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

func (rc *relayConn) sendBrowser(msg Message) {
	select {
	case rc.browserSend <- msg:
	default:
		// buffer full, skip
	}
}

func (rc *relayConn) sendProvider(msg any) {
	select {
	case rc.providerSend <- msg:
	default:
	}
}
