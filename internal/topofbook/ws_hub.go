package topofbook

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wireSnapshot is the JSON shape pushed to websocket subscribers.
type wireSnapshot struct {
	Instrument string  `json:"instrument"`
	Bid        *string `json:"bid"`
	BidVolume  int64   `json:"bidVolume"`
	Ask        *string `json:"ask"`
	AskVolume  int64   `json:"askVolume"`
}

func toWire(s Snapshot) wireSnapshot {
	w := wireSnapshot{Instrument: s.Instrument, BidVolume: s.BidVolume, AskVolume: s.AskVolume}
	if s.HasBid {
		v := s.BidPrice.String()
		w.Bid = &v
	}
	if s.HasAsk {
		v := s.AskPrice.String()
		w.Ask = &v
	}
	return w
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebsocketHub upgrades HTTP connections to websockets and registers each
// one as a topofbook Observer for the instrument named in the request's
// "instrument" query parameter. Each connection gets its own single
// writer goroutine draining a BufferedObserver, so a slow client can only
// ever fall behind its own buffer, never the publisher.
type WebsocketHub struct {
	publisher *Publisher
	logger    *zap.Logger

	mu    sync.Mutex
	conns []*wsConn
}

type wsConn struct {
	obs  *BufferedObserver
	conn *websocket.Conn
}

// NewWebsocketHub returns a hub that registers observers on publisher.
func NewWebsocketHub(publisher *Publisher, logger *zap.Logger) *WebsocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebsocketHub{publisher: publisher, logger: logger}
}

// ServeHTTP upgrades the connection and streams top-of-book snapshots for
// the requested instrument until the client disconnects.
func (h *WebsocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		http.Error(w, "missing instrument query parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	obs := NewBufferedObserver()
	h.publisher.Subscribe(instrument, obs)

	wc := &wsConn{obs: obs, conn: conn}
	h.mu.Lock()
	h.conns = append(h.conns, wc)
	h.mu.Unlock()

	go h.writeLoop(wc, instrument)
}

func (h *WebsocketHub) writeLoop(wc *wsConn, instrument string) {
	defer wc.conn.Close()
	for snap := range wc.obs.C() {
		payload, err := json.Marshal(toWire(snap))
		if err != nil {
			h.logger.Warn("marshal top-of-book snapshot failed", zap.Error(err))
			continue
		}
		if err := wc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("websocket client disconnected",
				zap.String("instrument", instrument), zap.Error(err))
			return
		}
	}
}
