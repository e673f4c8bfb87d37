package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/interact"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second

	// Client messages are tiny.
	maxMessageSize = 4096
)

// frame is what clients receive whenever the picture changed.
type frame struct {
	Type       string         `json:"type"`
	Generation string         `json:"generation"`
	Iterations uint64         `json:"iterations"`
	State      interact.State `json:"state"`
	Nodes      []graph.Node   `json:"nodes"`
	Edges      []graph.Edge   `json:"edges"`
}

// clientMessage is an interaction sent by a client.
type clientMessage struct {
	Type string `json:"type"` // hover, leave, select, deselect
	Node string `json:"node,omitempty"`
}

// checkOrigin allows clients without an Origin header and local pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "http://" + r.Host} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// wsClient is one websocket connection.
type wsClient struct {
	id     string
	server *Server
	conn   *websocket.Conn
	quit   chan struct{}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		quit:   make(chan struct{}),
	}
	s.logger.Debug("websocket connected", "client", c.id)
	go c.writePump()
	go c.readPump()
}

// readPump applies client interactions until the connection drops.
func (c *wsClient) readPump() {
	defer func() {
		close(c.quit)
		c.conn.Close()
		c.server.logger.Debug("websocket disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warn("websocket read error", "client", c.id, "error", err)
			}
			return
		}
		c.apply(msg)
	}
}

func (c *wsClient) apply(msg clientMessage) {
	bus := c.server.sess.Bus()
	switch msg.Type {
	case "hover":
		bus.Emit(interact.Event{Kind: interact.EventEnterNode, Node: msg.Node})
	case "leave":
		bus.Emit(interact.Event{Kind: interact.EventLeaveNode})
	case "select":
		bus.Emit(interact.Event{Kind: interact.EventSelect, Node: msg.Node})
	case "deselect":
		if ctl := c.server.sess.Controller(); ctl != nil {
			ctl.ClearSelection()
			c.server.touch()
		}
	default:
		c.server.logger.Debug("ignoring websocket message", "client", c.id, "type", msg.Type)
	}
}

// writePump sends a frame at most once per frame interval, and only when
// something changed since the last one.
func (c *wsClient) writePump() {
	frames := time.NewTicker(c.server.frameInterval)
	pings := time.NewTicker(pingPeriod)
	defer func() {
		frames.Stop()
		pings.Stop()
		c.conn.Close()
	}()

	var sent uint64
	first := true
	for {
		select {
		case <-c.quit:
			return
		case <-c.server.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-frames.C:
			v := c.server.version.Load()
			if !first && v == sent {
				continue
			}
			f, ok := c.server.frame()
			if !ok {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.server.logger.Debug("websocket write failed", "client", c.id, "error", err)
				return
			}
			sent, first = v, false
		case <-pings.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) frame() (frame, bool) {
	st, eng, ctl := s.sess.Store(), s.sess.Engine(), s.sess.Controller()
	if st == nil || eng == nil || ctl == nil {
		return frame{}, false
	}
	snap := st.Snapshot()
	return frame{
		Type:       "frame",
		Generation: s.sess.Generation(),
		Iterations: eng.Iterations(),
		State:      ctl.State(),
		Nodes:      snap.Nodes,
		Edges:      snap.Edges,
	}, true
}
