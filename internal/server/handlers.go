package server

import (
	"net/http"

	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ledger"
)

type createOwnerRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type watchRequest struct {
	DisplayName string `json:"display_name"`
}

// --- Owners ---

// POST /v1/owners
func (s *HTTPServer) handleCreateOwner(r *http.Request, _ map[string]string) (interface{}, int, error) {
	var req createOwnerRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, 0, err
	}
	currency, err := ledger.ParseCurrency(req.Currency)
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.engine.CreateOwner(r.Context(), req.Name, currency)
	if err != nil {
		return nil, 0, err
	}
	return owner, http.StatusCreated, nil
}

// GET /v1/owners
func (s *HTTPServer) handleListOwners(r *http.Request, _ map[string]string) (interface{}, int, error) {
	owners, err := s.reader.Owners(r.Context())
	if err != nil {
		return nil, 0, err
	}
	return nonNil(owners), http.StatusOK, nil
}

// GET /v1/owners/{owner}
func (s *HTTPServer) handleGetOwner(r *http.Request, p map[string]string) (interface{}, int, error) {
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	return owner, http.StatusOK, nil
}

// --- Operations ---
// Bodies use the inbound event encoding; the owner comes from the path.

// POST /v1/owners/{owner}/deposits
func (s *HTTPServer) handleDeposit(r *http.Request, p map[string]string) (interface{}, int, error) {
	var body event.CashDeposit
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	receipt, err := s.engine.Deposit(r.Context(), owner, body.Request())
	if err != nil {
		return nil, 0, err
	}
	return receipt, http.StatusCreated, nil
}

// POST /v1/owners/{owner}/withdrawals
func (s *HTTPServer) handleWithdraw(r *http.Request, p map[string]string) (interface{}, int, error) {
	var body event.CashWithdrawal
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	receipt, err := s.engine.Withdraw(r.Context(), owner, body.Request())
	if err != nil {
		return nil, 0, err
	}
	return receipt, http.StatusCreated, nil
}

// POST /v1/owners/{owner}/buys
func (s *HTTPServer) handleBuy(r *http.Request, p map[string]string) (interface{}, int, error) {
	return s.trade(r, p, event.SideBuy)
}

// POST /v1/owners/{owner}/sells
func (s *HTTPServer) handleSell(r *http.Request, p map[string]string) (interface{}, int, error) {
	return s.trade(r, p, event.SideSell)
}

func (s *HTTPServer) trade(r *http.Request, p map[string]string, side event.Side) (interface{}, int, error) {
	body := event.TradeFill{TradeSide: side}
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}

	apply := s.engine.Buy
	if side == event.SideSell {
		apply = s.engine.Sell
	}
	receipt, err := apply(r.Context(), owner, body.Request())
	if err != nil {
		return nil, 0, err
	}
	return receipt, http.StatusCreated, nil
}

// POST /v1/owners/{owner}/deposits-in-kind
func (s *HTTPServer) handleDepositInKind(r *http.Request, p map[string]string) (interface{}, int, error) {
	var body event.InKindDeposit
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	receipt, err := s.engine.DepositInKind(r.Context(), owner, body.Request())
	if err != nil {
		return nil, 0, err
	}
	return receipt, http.StatusCreated, nil
}

// --- Cash ---

// GET /v1/owners/{owner}/cash?as_of=
func (s *HTTPServer) handleGetCash(r *http.Request, p map[string]string) (interface{}, int, error) {
	asOf, err := int64Param(r, "as_of")
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetCash(r.Context(), owner, asOf)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// GET /v1/owners/{owner}/cash/eod?day=YYYY-MM-DD
func (s *HTTPServer) handleGetEODCash(r *http.Request, p map[string]string) (interface{}, int, error) {
	day, err := s.reader.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetEODCash(r.Context(), owner, day)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// GET /v1/owners/{owner}/cash-movements?from=&to=
func (s *HTTPServer) handleCashMovements(r *http.Request, p map[string]string) (interface{}, int, error) {
	from, err := int64Param(r, "from")
	if err != nil {
		return nil, 0, err
	}
	to, err := int64Param(r, "to")
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	movements, err := s.reader.CashHistory(r.Context(), owner.ID, from, to)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(movements), http.StatusOK, nil
}

// GET /v1/owners/{owner}/transactions?symbol=
func (s *HTTPServer) handleTransactions(r *http.Request, p map[string]string) (interface{}, int, error) {
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	txs, err := s.reader.Transactions(r.Context(), owner.ID, r.URL.Query().Get("symbol"))
	if err != nil {
		return nil, 0, err
	}
	return nonNil(txs), http.StatusOK, nil
}

// GET /v1/owners/{owner}/summary/eod?day=
func (s *HTTPServer) handleEODSummary(r *http.Request, p map[string]string) (interface{}, int, error) {
	day, err := s.reader.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetEODSummary(r.Context(), owner, day)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// --- Positions ---

// GET /v1/owners/{owner}/positions?as_of=
func (s *HTTPServer) handleListPositions(r *http.Request, p map[string]string) (interface{}, int, error) {
	asOf, err := int64Param(r, "as_of")
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetSummary(r.Context(), owner, asOf)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// GET /v1/owners/{owner}/positions/{symbol}?as_of=
func (s *HTTPServer) handleGetPosition(r *http.Request, p map[string]string) (interface{}, int, error) {
	asOf, err := int64Param(r, "as_of")
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetPosition(r.Context(), owner, p["symbol"], asOf)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// GET /v1/owners/{owner}/positions/{symbol}/eod?day=
func (s *HTTPServer) handleGetEODPosition(r *http.Request, p map[string]string) (interface{}, int, error) {
	day, err := s.reader.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		return nil, 0, err
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.reader.GetEODPosition(r.Context(), owner, p["symbol"], day)
	if err != nil {
		return nil, 0, err
	}
	return resp, http.StatusOK, nil
}

// --- Watchlist ---

// GET /v1/owners/{owner}/watchlist
func (s *HTTPServer) handleWatchlist(r *http.Request, p map[string]string) (interface{}, int, error) {
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	symbols, err := s.reader.Watchlist(r.Context(), owner.ID)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(symbols), http.StatusOK, nil
}

// GET /v1/owners/{owner}/watchlist/{symbol}
func (s *HTTPServer) handleIsWatching(r *http.Request, p map[string]string) (interface{}, int, error) {
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	watching, err := s.reader.IsWatching(r.Context(), owner.ID, p["symbol"])
	if err != nil {
		return nil, 0, err
	}
	return map[string]interface{}{"symbol": p["symbol"], "watching": watching}, http.StatusOK, nil
}

// PUT /v1/owners/{owner}/watchlist/{symbol}; the body is optional.
func (s *HTTPServer) handleStartWatching(r *http.Request, p map[string]string) (interface{}, int, error) {
	var body watchRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			return nil, 0, err
		}
	}
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	sym, err := s.engine.StartWatching(r.Context(), owner, p["symbol"], body.DisplayName)
	if err != nil {
		return nil, 0, err
	}
	return sym, http.StatusOK, nil
}

// DELETE /v1/owners/{owner}/watchlist/{symbol}
func (s *HTTPServer) handleStopWatching(r *http.Request, p map[string]string) (interface{}, int, error) {
	owner, err := s.reader.Owner(r.Context(), p["owner"])
	if err != nil {
		return nil, 0, err
	}
	removed, err := s.engine.StopWatching(r.Context(), owner, p["symbol"])
	if err != nil {
		return nil, 0, err
	}
	return map[string]interface{}{"symbol": p["symbol"], "removed": removed}, http.StatusOK, nil
}

// --- Symbols & prices ---

// POST /v1/prices
func (s *HTTPServer) handleRecordPrice(r *http.Request, _ map[string]string) (interface{}, int, error) {
	var body event.PriceObservation
	if err := decodeBody(r, &body); err != nil {
		return nil, 0, err
	}
	pp, err := s.engine.RecordPrice(r.Context(), body.Symbol, body.Timestamp, body.OHLCV)
	if err != nil {
		return nil, 0, err
	}
	return pp, http.StatusCreated, nil
}

// GET /v1/symbols
func (s *HTTPServer) handleListSymbols(r *http.Request, _ map[string]string) (interface{}, int, error) {
	symbols, err := s.reader.Symbols(r.Context())
	if err != nil {
		return nil, 0, err
	}
	return nonNil(symbols), http.StatusOK, nil
}

// DELETE /v1/symbols/{symbol}
func (s *HTTPServer) handleDeleteSymbol(r *http.Request, p map[string]string) (interface{}, int, error) {
	deleted, err := s.engine.DeleteSymbol(r.Context(), p["symbol"])
	if err != nil {
		return nil, 0, err
	}
	return map[string]interface{}{"symbol": p["symbol"], "deleted": deleted}, http.StatusOK, nil
}

// GET /v1/symbols/{symbol}/prices
func (s *HTTPServer) handleListPrices(r *http.Request, p map[string]string) (interface{}, int, error) {
	prices, err := s.reader.Prices(r.Context(), p["symbol"])
	if err != nil {
		return nil, 0, err
	}
	return nonNil(prices), http.StatusOK, nil
}

// GET /v1/symbols/{symbol}/prices/latest?as_of=&same_day=
func (s *HTTPServer) handleLatestPrice(r *http.Request, p map[string]string) (interface{}, int, error) {
	asOf, err := int64Param(r, "as_of")
	if err != nil {
		return nil, 0, err
	}
	sameDay, err := boolParam(r, "same_day")
	if err != nil {
		return nil, 0, err
	}
	pp, err := s.reader.LatestPrice(r.Context(), p["symbol"], asOf, sameDay)
	if err != nil {
		return nil, 0, err
	}
	if pp == nil {
		return nil, 0, noPrice(p["symbol"])
	}
	return pp, http.StatusOK, nil
}

// GET /v1/symbols/{symbol}/prices/eod?day=
func (s *HTTPServer) handleEODPrice(r *http.Request, p map[string]string) (interface{}, int, error) {
	day, err := s.reader.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		return nil, 0, err
	}
	pp, err := s.reader.EODPrice(r.Context(), p["symbol"], day)
	if err != nil {
		return nil, 0, err
	}
	if pp == nil {
		return nil, 0, noPrice(p["symbol"])
	}
	return pp, http.StatusOK, nil
}
