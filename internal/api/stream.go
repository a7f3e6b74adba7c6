package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/returns"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Frame types written to stream clients.
const (
	FrameRow     = "ROW"
	FrameSummary = "SUMMARY"
	FrameDone    = "DONE"
	FrameError   = "ERROR"
	FramePong    = "PONG"
)

// Frame is one message written to a stream client.
type Frame struct {
	Type     string           `json:"type"`
	ReqID    string           `json:"req_id,omitempty"`
	RunID    string           `json:"run_id,omitempty"`
	Strategy string           `json:"strategy,omitempty"`
	Index    int              `json:"index,omitempty"`
	Row      *model.Row       `json:"row,omitempty"`
	Summary  *returns.Summary `json:"summary,omitempty"`
	Trades   []backtest.Trade `json:"trades,omitempty"`
	Error    string           `json:"error,omitempty"`
	Field    string           `json:"field,omitempty"`
	Ping     int64            `json:"ping,omitempty"`
	ServerTS int64            `json:"server_ts,omitempty"`
}

// runMsg is a client message: {"type":"RUN","req_id":"1","request":{...}}
// or {"type":"PING","ping":<unix ms>}.
type runMsg struct {
	Type    string           `json:"type"`
	ReqID   string           `json:"req_id"`
	Ping    int64            `json:"ping"`
	Request backtest.Request `json:"request"`
}

// streamClient is a single WebSocket peer.
type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &streamClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}
	go c.writePump()
	go c.readPump()
}

// enqueue blocks until the frame is queued or the client goes away;
// result frames are never dropped.
func (c *streamClient) enqueue(f Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("[api] frame marshal error: %v", err)
		return false
	}
	select {
	case c.send <- data:
		c.server.metrics.FrameSent()
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued frames into one WebSocket message, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.cancel()
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *streamClient) readPump() {
	defer func() {
		c.cancel()
		log.Println("[api] ws client disconnected")
	}()

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg runMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: "invalid message: " + err.Error()})
			continue
		}
		switch msg.Type {
		case "RUN":
			// Runs are served one at a time per connection, in order.
			c.run(msg)
		case "PING":
			c.enqueue(Frame{Type: FramePong, Ping: msg.Ping, ServerTS: time.Now().UnixMilli()})
		default:
			c.enqueue(Frame{Type: FrameError, ReqID: msg.ReqID, Error: "unknown message type " + msg.Type})
		}
	}
}

// run executes one request and streams every result row, then a summary
// per result and a final DONE frame.
func (c *streamClient) run(msg runMsg) {
	rep, err := c.server.runner.Run(c.ctx, msg.Request)
	if err != nil {
		_, body := errorStatus(err)
		c.enqueue(Frame{Type: FrameError, ReqID: msg.ReqID, Error: body.Error, Field: body.Field})
		return
	}
	c.server.remember(rep)

	results := rep.Results
	if rep.Combined != nil {
		results = append(append([]backtest.Result(nil), results...), *rep.Combined)
	}
	for ri := range results {
		res := &results[ri]
		if res.Empty() {
			if !c.enqueue(Frame{Type: FrameError, ReqID: msg.ReqID, RunID: rep.RunID, Strategy: res.Strategy, Error: res.Error}) {
				return
			}
			continue
		}
		for i := range res.Rows {
			if !c.enqueue(Frame{Type: FrameRow, ReqID: msg.ReqID, RunID: rep.RunID, Strategy: res.Strategy, Index: i, Row: &res.Rows[i]}) {
				return
			}
		}
		if !c.enqueue(Frame{Type: FrameSummary, ReqID: msg.ReqID, RunID: rep.RunID, Strategy: res.Strategy, Summary: &res.Summary, Trades: res.Trades}) {
			return
		}
	}
	c.enqueue(Frame{Type: FrameDone, ReqID: msg.ReqID, RunID: rep.RunID})
}
