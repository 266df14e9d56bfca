// Package httpapi is C10: the HTTP/WebSocket surface over the trading
// facade. It generalizes the teacher's net.Server (internal/net/server.go)
// from a length-prefixed binary TCP protocol to JSON over gorilla/mux
// and gorilla/websocket, the way this pack's other services front a
// core with an HTTP transport. Every handler here does nothing but
// decode, call into trading.Session, and encode — none of the spec's
// invariants live in this package.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"bourse/internal/common"
	"bourse/internal/trading"
)

const sessionCookie = "session_id"

// Server wires trading.Session to an HTTP mux. It holds no state of its
// own beyond the router and the websocket upgrader.
type Server struct {
	session  *trading.Session
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New builds the router. CORS is left to a reverse proxy in front of
// this process; this server assumes a same-origin browser client.
func New(session *trading.Session) *Server {
	s := &Server{
		session: session,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

// Handler returns the root http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/user", s.handleUser).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orderbook", s.handleOrderBook).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orders", s.handleGetOrders).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/api/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/orders/{id}", s.handleAmendOrder).Methods(http.MethodPut)
	s.router.HandleFunc("/api/trades", s.handleGetTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
}

// sessionIDFrom reads the bearer session cookie, if any.
func sessionIDFrom(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie persists a newly minted session token on the
// response so subsequent requests from the same browser resolve to the
// same account (spec §3 "Session").
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error().Err(err).Msg("failed to encode response body")
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps the core's sentinel errors to HTTP status codes
// (SPEC_FULL.md C10), defaulting to 500 for anything unrecognized.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrNotOwner), errors.Is(err, common.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrNotCancellable), errors.Is(err, common.ErrNotAmendable):
		status = http.StatusConflict
	default:
		log.Error().Err(err).Msg("unmapped error in httpapi")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Service string `json:"service"`
	}{"bourse"})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	token, snap := s.session.GetUser(sessionIDFrom(r))
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userWire(snap))
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bookWire(s.session.GetBook()))
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	token, orders := s.session.GetOrders(sessionIDFrom(r))
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, orders)
}

type placeOrderBody struct {
	Side  common.Side `json:"side"`
	Kind  common.Kind `json:"order_type"`
	Qty   decimalWire `json:"quantity"`
	Price decimalWire `json:"price,omitempty"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, common.ValidationErrorf("malformed request body: %v", err))
		return
	}
	price, err := body.Price.decimal()
	if err != nil {
		writeError(w, common.ValidationErrorf("invalid price: %v", err))
		return
	}
	qty, err := body.Qty.decimal()
	if err != nil {
		writeError(w, common.ValidationErrorf("invalid qty: %v", err))
		return
	}

	token, outcome, err := s.session.PlaceOrder(sessionIDFrom(r), trading.PlaceInput{
		Side:  body.Side,
		Kind:  body.Kind,
		Qty:   qty,
		Price: price,
	})
	setSessionCookie(w, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Order  *common.Order  `json:"order"`
		Trades []common.Trade `json:"trades"`
	}{outcome.Order, outcome.Trades})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := common.OrderID(mux.Vars(r)["id"])
	token, order, err := s.session.CancelOrder(sessionIDFrom(r), id)
	setSessionCookie(w, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type amendOrderBody struct {
	Price *decimalWire `json:"price,omitempty"`
	Qty   *decimalWire `json:"quantity,omitempty"`
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	id := common.OrderID(mux.Vars(r)["id"])
	var body amendOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, common.ValidationErrorf("malformed request body: %v", err))
		return
	}

	var newPrice, newQty *decimal.Decimal
	if body.Price != nil {
		d, err := body.Price.decimal()
		if err != nil {
			writeError(w, common.ValidationErrorf("invalid price: %v", err))
			return
		}
		newPrice = &d
	}
	if body.Qty != nil {
		d, err := body.Qty.decimal()
		if err != nil {
			writeError(w, common.ValidationErrorf("invalid qty: %v", err))
			return
		}
		newQty = &d
	}

	token, order, err := s.session.AmendOrder(sessionIDFrom(r), id, newPrice, newQty)
	setSessionCookie(w, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	token, trades := s.session.GetTrades(sessionIDFrom(r))
	setSessionCookie(w, token)

	// Pagination supplement: ?limit=N returns the most recent N trades.
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if n, err := strconv.Atoi(limStr); err == nil && n >= 0 && n < len(trades) {
			trades = trades[len(trades)-n:]
		}
	}
	writeJSON(w, http.StatusOK, trades)
}

// handleWebSocket upgrades the connection, pushes the initial user_info
// and order_book events, then forwards every subsequent bus event until
// the client disconnects (spec §4.5).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token, sub, user, initialBook := s.session.Subscribe(sessionIDFrom(r))

	handshakeHeader := http.Header{}
	if _, err := r.Cookie(sessionCookie); err != nil || sessionIDFrom(r) != token {
		handshakeHeader.Add("Set-Cookie", (&http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}).String())
	}

	conn, err := s.upgrader.Upgrade(w, r, handshakeHeader)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		s.session.Unsubscribe(sub.ID())
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(kind string, data any) bool {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(envelope{Type: kind, Data: data}) == nil
	}

	if !send("user_info", userWire(user)) || !send("order_book", bookWire(initialBook)) {
		s.session.Unsubscribe(sub.ID())
		return
	}

	// A background read pump is the only way to notice the client went
	// away: gorilla/websocket requires a reader to process control frames
	// and to surface the close once the peer hangs up.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			s.session.Unsubscribe(sub.ID())
			return
		}
		if !send(string(ev.Kind), ev.Data) {
			s.session.Unsubscribe(sub.ID())
			return
		}
	}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
