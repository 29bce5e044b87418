// Package transport exposes the admission coordinator over a plain TCP
// listener using newline-delimited JSON (NDJSON): one request per line,
// one response per line, no HTTP framework involved. SPEC_FULL.md §6
// is explicit that this exists only so cmd/exchange is runnable end to
// end — the HTTP/JSON dashboard and bot layers spec.md §1 names are
// out of scope, so this is deliberately the plainest possible wire
// format, mirroring the teacher's own single-process batch harness
// rather than a REST API.
package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/coordinator"
	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

// request is the NDJSON wire shape for every admission kind. Kind
// selects which of the other fields are meaningful.
type request struct {
	Kind       string `json:"kind"` // "order" | "quote" | "cancel" | "remove_quotes"
	ID         string `json:"id,omitempty"`
	User       string `json:"user,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Side       string `json:"side,omitempty"` // "BUY" | "SELL"
	Price      string `json:"price,omitempty"`
	Volume     int64  `json:"volume,omitempty"`
	OrderType  string `json:"orderType,omitempty"` // "LIMIT" | "FOK"

	LinkType      string `json:"linkType,omitempty"`
	LinkedOrderID string `json:"linkedOrderId,omitempty"`

	QuoteID   string `json:"quoteId,omitempty"`
	BuyPrice  string `json:"buyPrice,omitempty"`
	SellPrice string `json:"sellPrice,omitempty"`
}

type response struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status,omitempty"`
	Trades int    `json:"trades,omitempty"`
}

// Server accepts NDJSON admission connections and dispatches each
// request line to the coordinator.
type Server struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

// NewServer returns a Server wired to coord.
func NewServer(coord *coordinator.Coordinator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{coord: coord, logger: logger}
}

// ListenAndServe blocks accepting connections on addr until the listener
// errors or is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.logger.Info("ndjson admission transport listening", zap.String("addr", addr))
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(response{OK: false, Error: "malformed JSON: " + err.Error()})
			continue
		}
		_ = enc.Encode(s.dispatch(req))
	}
}

func (s *Server) dispatch(req request) response {
	switch req.Kind {
	case "order":
		return s.dispatchOrder(req)
	case "quote":
		return s.dispatchQuote(req)
	case "cancel":
		return s.dispatchCancel(req)
	case "remove_quotes":
		return s.dispatchRemoveQuotes(req)
	default:
		return response{OK: false, Error: "unknown kind: " + req.Kind}
	}
}

func parseSide(s string) (tradable.Side, error) {
	switch s {
	case "BUY":
		return tradable.Buy, nil
	case "SELL":
		return tradable.Sell, nil
	default:
		return 0, errors.New("side must be BUY or SELL")
	}
}

func parseOrderType(s string) tradable.OrderType {
	if s == "FOK" {
		return tradable.FOK
	}
	return tradable.Limit
}

func (s *Server) dispatchOrder(req request) response {
	side, err := parseSide(req.Side)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	px, err := price.Parse(req.Price)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}

	order, err := tradable.NewOrder(req.ID, req.User, req.Instrument, side, px, req.Volume, parseOrderType(req.OrderType))
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	if req.LinkType == "OCO" {
		order = order.WithLink(tradable.OCO, req.LinkedOrderID)
	}

	result, err := s.coord.SubmitOrder(order)
	if err != nil {
		return response{OK: false, Error: err.Error(), Status: result.Tradable.Status.String()}
	}
	return response{OK: true, Status: result.Tradable.Status.String(), Trades: len(result.Trades)}
}

func (s *Server) dispatchQuote(req request) response {
	buyPx, err := price.Parse(req.BuyPrice)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	sellPx, err := price.Parse(req.SellPrice)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}

	buySide, err := tradable.NewQuoteSide(req.ID+"-buy", req.QuoteID, req.User, req.Instrument, tradable.Buy, buyPx, req.Volume)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	sellSide, err := tradable.NewQuoteSide(req.ID+"-sell", req.QuoteID, req.User, req.Instrument, tradable.Sell, sellPx, req.Volume)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}

	quote := &tradable.Quote{
		ID:         req.QuoteID,
		User:       req.User,
		Instrument: req.Instrument,
		Buy:        buySide,
		Sell:       sellSide,
	}

	result, err := s.coord.SubmitQuote(quote)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	return response{OK: true, Trades: len(result.Trades)}
}

func (s *Server) dispatchCancel(req request) response {
	side, err := parseSide(req.Side)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	dto, err := s.coord.Cancel(req.Instrument, side, req.ID)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	return response{OK: true, Status: dto.Status.String()}
}

func (s *Server) dispatchRemoveQuotes(req request) response {
	removed, err := s.coord.RemoveQuotesForUser(req.Instrument, req.User)
	if err != nil {
		return response{OK: false, Error: err.Error()}
	}
	return response{OK: true, Trades: len(removed)}
}
