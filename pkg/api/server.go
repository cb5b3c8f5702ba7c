package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/engine"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Pair endpoints
	api.HandleFunc("/pairs", s.handleListPairs).Methods("GET")
	api.HandleFunc("/pairs", s.handleCreatePair).Methods("POST")
	api.HandleFunc("/pairs/{base}/{quote}", s.handleGetPair).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}", s.handleRemovePair).Methods("DELETE")
	api.HandleFunc("/pairs/{base}/{quote}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/ticks", s.handleGetTicks).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/mid-price", s.handleGetMidPrice).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/orders/{id}", s.handleGetOrder).Methods("GET")

	// Order submission
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/market", s.handleSubmitMarketOrder).Methods("POST")
	api.HandleFunc("/orders/simulate", s.handleSimulateMarketOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/last-id", s.handleLastOrderID).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string, allowedOrigins []string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// Pair Handlers
// ==============================

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	by := parseOrderBy(q.Get("order_by"))

	var startAfter []byte
	if cur := q.Get("start_after"); cur != "" {
		var err error
		startAfter, err = hex.DecodeString(cur)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_after cursor", err.Error())
			return
		}
	}

	books, err := s.engine.QueryBooks(startAfter, limit, by)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	response := make([]PairInfo, len(books))
	for i := range books {
		response[i] = pairInfo(&books[i])
	}
	respondJSON(w, response)
}

func (s *Server) handleCreatePair(w http.ResponseWriter, r *http.Request) {
	var req CreatePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	base, err := parseAssetInfo(req.BaseAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid base asset", err.Error())
		return
	}
	quote, err := parseAssetInfo(req.QuoteAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote asset", err.Error())
		return
	}

	book := orderbook.NewBook(base, quote, req.Spread, req.MinQuoteAmount)
	if err := s.engine.CreatePair(book); err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("[api] pair created: %s/%s", req.BaseAsset, req.QuoteAsset)
	respondJSON(w, pairInfo(&book))
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	book, err := s.engine.QueryBook(base, quote)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, pairInfo(&book))
}

func (s *Server) handleRemovePair(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	if err := s.engine.RemovePair(base, quote); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "removed"})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	snapshot, err := s.bookSnapshot(base, quote, mux.Vars(r)["base"], mux.Vars(r)["quote"])
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, snapshot)
}

func (s *Server) handleGetTicks(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	dir, err := orderbook.ParseDirection(q.Get("direction"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err.Error())
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	by := parseOrderBy(q.Get("order_by"))

	startAfter, err := parseDecimalParam(q.Get("start_after"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start_after", err.Error())
		return
	}
	end, err := parseDecimalParam(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end", err.Error())
		return
	}

	ticks, err := s.engine.QueryTicks(base, quote, dir, startAfter, end, limit, by)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, tickLevels(ticks))
}

func (s *Server) handleGetMidPrice(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	mid, found, err := s.engine.QueryMidPrice(base, quote)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "one or both sides are empty", "")
		return
	}
	respondJSON(w, map[string]decimal.Decimal{"mid_price": mid})
}

// ==============================
// Order Handlers
// ==============================

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	filter := orderbook.NoFilter()
	switch {
	case q.Get("bidder") != "":
		if !common.IsHexAddress(q.Get("bidder")) {
			respondError(w, http.StatusBadRequest, "invalid bidder address", "")
			return
		}
		filter = orderbook.FilterByBidder(common.HexToAddress(q.Get("bidder")))
	case q.Get("price") != "":
		price, err := decimal.NewFromString(q.Get("price"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid price", err.Error())
			return
		}
		filter = orderbook.FilterByPrice(price)
	case q.Get("tick") == "true":
		filter = orderbook.FilterByTick()
	}

	var dir *orderbook.Direction
	if ds := q.Get("direction"); ds != "" {
		d, err := orderbook.ParseDirection(ds)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid direction", err.Error())
			return
		}
		dir = &d
	}

	var startAfter *uint64
	if cur := q.Get("start_after"); cur != "" {
		id, err := strconv.ParseUint(cur, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_after", err.Error())
			return
		}
		startAfter = &id
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	by := parseOrderBy(q.Get("order_by"))

	orders, err := s.engine.QueryOrders(base, quote, filter, dir, startAfter, limit, by)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	base, quote, ok := s.pairVars(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	order, err := s.engine.QueryOrder(base, quote, id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, order)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Bidder) {
		respondError(w, http.StatusBadRequest, "invalid bidder address", "")
		return
	}
	direction, err := orderbook.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err.Error())
		return
	}
	offerInfo, err := parseAssetInfo(req.OfferAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid offer asset", err.Error())
		return
	}
	askInfo, err := parseAssetInfo(req.AskAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ask asset", err.Error())
		return
	}

	orderID, result, err := s.engine.SubmitOrder(
		common.HexToAddress(req.Bidder),
		direction,
		asset.NewAsset(offerInfo, req.OfferAmount),
		asset.NewAsset(askInfo, req.AskAmount),
	)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("[api] order submitted: id=%d direction=%s", orderID, direction)
	s.broadcastMatch(req.OfferAsset, req.AskAsset, direction, result)
	respondJSON(w, SubmitOrderResponse{OrderID: orderID, Result: result})
}

func (s *Server) handleSubmitMarketOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitMarketOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Bidder) {
		respondError(w, http.StatusBadRequest, "invalid bidder address", "")
		return
	}
	direction, base, quote, err := parseMarketParams(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	orderID, result, err := s.engine.SubmitMarketOrder(
		common.HexToAddress(req.Bidder), direction, base, quote, req.OfferAmount, req.Slippage)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("[api] market order executed: id=%d direction=%s refund=%s",
		orderID, direction, result.RefundAmount)
	s.broadcastMatch(req.BaseAsset, req.QuoteAsset, direction, result)
	respondJSON(w, SubmitOrderResponse{OrderID: orderID, Result: result})
}

func (s *Server) handleSimulateMarketOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitMarketOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	direction, base, quote, err := parseMarketParams(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	sim, err := s.engine.SimulateMarketOrder(direction, base, quote, req.OfferAmount, req.Slippage)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, sim)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Bidder) {
		respondError(w, http.StatusBadRequest, "invalid bidder address", "")
		return
	}
	base, err := parseAssetInfo(req.BaseAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid base asset", err.Error())
		return
	}
	quote, err := parseAssetInfo(req.QuoteAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote asset", err.Error())
		return
	}

	if err := s.engine.CancelOrder(common.HexToAddress(req.Bidder), base, quote, req.OrderID); err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("[api] order cancelled: id=%d", req.OrderID)
	s.broadcastBook(req.BaseAsset, req.QuoteAsset)
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleLastOrderID(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.QueryLastOrderID()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]uint64{"last_order_id": id})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// broadcastMatch pushes the trades of a matching round to the trades
// channel and a fresh book snapshot to the book channel.
func (s *Server) broadcastMatch(a, b string, takerDir orderbook.Direction, result *engine.MatchResult) {
	channelPair := a + "/" + b
	if result != nil {
		now := time.Now().UnixMilli()
		for i := range result.Makers {
			maker := &result.Makers[i]
			filledBase, filledQuote := maker.FilledOfferRound, maker.FilledAskRound
			if maker.Order.Direction == orderbook.Buy {
				filledBase, filledQuote = filledQuote, filledBase
			}
			if filledBase.IsZero() {
				continue
			}
			s.hub.BroadcastToChannel("trades:"+channelPair, TradeUpdate{
				Type:        "trade",
				OrderID:     maker.Order.OrderID,
				TakerID:     result.OrderID,
				Direction:   takerDir.String(),
				Price:       orderbook.RatioPrice(filledQuote, filledBase),
				FilledBase:  filledBase,
				FilledQuote: filledQuote,
				Timestamp:   now,
			})
		}
	}
	s.broadcastBook(a, b)
}

func (s *Server) broadcastBook(a, b string) {
	base, err := parseAssetInfo(a)
	if err != nil {
		return
	}
	quote, err := parseAssetInfo(b)
	if err != nil {
		return
	}
	snapshot, err := s.bookSnapshot(base, quote, a, b)
	if err != nil {
		log.Printf("[api] book snapshot failed: %v", err)
		return
	}
	s.hub.BroadcastToChannel("book:"+a+"/"+b, BookUpdate{
		Type:       "book",
		BaseAsset:  a,
		QuoteAsset: b,
		Buys:       snapshot.Buys,
		Sells:      snapshot.Sells,
		Timestamp:  snapshot.Timestamp,
	})
}

func (s *Server) bookSnapshot(base, quote asset.Info, baseLabel, quoteLabel string) (OrderbookSnapshot, error) {
	buys, err := s.engine.QueryTicks(base, quote, orderbook.Buy, nil, nil, storage.MaxLimit, orderbook.Descending)
	if err != nil {
		return OrderbookSnapshot{}, err
	}
	sells, err := s.engine.QueryTicks(base, quote, orderbook.Sell, nil, nil, storage.MaxLimit, orderbook.Ascending)
	if err != nil {
		return OrderbookSnapshot{}, err
	}
	return OrderbookSnapshot{
		BaseAsset:  baseLabel,
		QuoteAsset: quoteLabel,
		Buys:       tickLevels(buys),
		Sells:      tickLevels(sells),
		Timestamp:  time.Now().UnixMilli(),
	}, nil
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) pairVars(w http.ResponseWriter, r *http.Request) (base, quote asset.Info, ok bool) {
	vars := mux.Vars(r)
	base, err := parseAssetInfo(vars["base"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid base asset", err.Error())
		return asset.Info{}, asset.Info{}, false
	}
	quote, err = parseAssetInfo(vars["quote"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote asset", err.Error())
		return asset.Info{}, asset.Info{}, false
	}
	return base, quote, true
}

func parseMarketParams(req *SubmitMarketOrderRequest) (orderbook.Direction, asset.Info, asset.Info, error) {
	direction, err := orderbook.ParseDirection(req.Direction)
	if err != nil {
		return 0, asset.Info{}, asset.Info{}, err
	}
	base, err := parseAssetInfo(req.BaseAsset)
	if err != nil {
		return 0, asset.Info{}, asset.Info{}, err
	}
	quote, err := parseAssetInfo(req.QuoteAsset)
	if err != nil {
		return 0, asset.Info{}, asset.Info{}, err
	}
	return direction, base, quote, nil
}

func parseOrderBy(s string) orderbook.OrderBy {
	if s == "desc" {
		return orderbook.Descending
	}
	return orderbook.Ascending
}

func parseDecimalParam(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func pairInfo(book *orderbook.Book) PairInfo {
	return PairInfo{
		BaseAsset:      book.BaseInfo.String(),
		QuoteAsset:     book.QuoteInfo.String(),
		Spread:         book.Spread,
		MinQuoteAmount: book.MinQuoteAmount,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondEngineError maps engine sentinel errors onto HTTP status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orderbook.ErrOrderNotFound),
		errors.Is(err, orderbook.ErrPairNotFound),
		errors.Is(err, orderbook.ErrNoMatchedPrice):
		status = http.StatusNotFound
	case errors.Is(err, orderbook.ErrPairExists),
		errors.Is(err, orderbook.ErrPairNotEmpty):
		status = http.StatusConflict
	case errors.Is(err, orderbook.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, orderbook.ErrInvalidDirection),
		errors.Is(err, orderbook.ErrAmountMustBePositive),
		errors.Is(err, orderbook.ErrSlippageTooLarge),
		errors.Is(err, orderbook.ErrBelowMinQuoteAmount):
		status = http.StatusBadRequest
	}
	respondError(w, status, err.Error(), "")
}
