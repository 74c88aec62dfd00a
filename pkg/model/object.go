// Package model defines the normalized domain objects exchanged between
// gateways, the event engine and the reconciliation engine, plus the
// request types routed the opposite way.
//
// Every object carries the name of the gateway that produced it. Composite
// "vt" keys qualify identifiers with exchange and gateway so that records
// from simultaneously connected gateways never collide.
package model

import (
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/shopspring/decimal"
)

// MaxDepthLevels is the number of bid/ask levels carried by a tick snapshot.
const MaxDepthLevels = 5

// VtSymbol builds the instrument-level composite key, "symbol.exchange".
func VtSymbol(symbol string, exchange enum.Exchange) string {
	return symbol + "." + string(exchange)
}

// PriceLevel is one side/level of the order book snapshot in a tick.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// Tick is the latest market snapshot for one instrument. It is replaced in
// place per instrument key; no history is retained by the core.
type Tick struct {
	GatewayName string        `json:"gateway_name"`
	Symbol      string        `json:"symbol"`
	Exchange    enum.Exchange `json:"exchange"`
	Time        time.Time     `json:"time"`

	LastPrice    decimal.Decimal `json:"last_price"`
	LastVolume   decimal.Decimal `json:"last_volume"`
	Volume       decimal.Decimal `json:"volume"`
	OpenInterest decimal.Decimal `json:"open_interest"`
	OpenPrice    decimal.Decimal `json:"open_price"`
	HighPrice    decimal.Decimal `json:"high_price"`
	LowPrice     decimal.Decimal `json:"low_price"`
	PreClose     decimal.Decimal `json:"pre_close"`

	Bids [MaxDepthLevels]PriceLevel `json:"bids"`
	Asks [MaxDepthLevels]PriceLevel `json:"asks"`
}

// VtSymbol returns the instrument-level composite key.
func (t Tick) VtSymbol() string { return VtSymbol(t.Symbol, t.Exchange) }

// Contract describes a tradable instrument published by a gateway. It is
// immutable for the session and replaced wholesale on reconnect.
type Contract struct {
	GatewayName string        `json:"gateway_name"`
	Symbol      string        `json:"symbol"`
	Exchange    enum.Exchange `json:"exchange"`
	Name        string        `json:"name"`
	Product     enum.Product  `json:"product"`

	Size      decimal.Decimal `json:"size"`
	PriceTick decimal.Decimal `json:"price_tick"`
	MinVolume decimal.Decimal `json:"min_volume"`

	StopSupported    bool `json:"stop_supported"`
	HistorySupported bool `json:"history_supported"`
}

// VtSymbol returns the instrument-level composite key.
func (c Contract) VtSymbol() string { return VtSymbol(c.Symbol, c.Exchange) }

// Order is the canonical view of one order. The order id is gateway-scoped;
// VtOrderID qualifies it globally. Orders are never deleted, only marked
// terminal.
type Order struct {
	GatewayName string          `json:"gateway_name"`
	Symbol      string          `json:"symbol"`
	Exchange    enum.Exchange   `json:"exchange"`
	OrderID     string          `json:"order_id"`
	Type        enum.OrderType  `json:"type"`
	Direction   enum.Direction  `json:"direction"`
	Offset      enum.Offset     `json:"offset"`
	Price       decimal.Decimal `json:"price"`
	Volume      decimal.Decimal `json:"volume"`
	Traded      decimal.Decimal `json:"traded"`
	Status      enum.Status     `json:"status"`
	Time        time.Time       `json:"time"`
	Reference   string          `json:"reference"`
}

// VtSymbol returns the instrument-level composite key.
func (o Order) VtSymbol() string { return VtSymbol(o.Symbol, o.Exchange) }

// VtOrderID returns the gateway-qualified order key, "gateway.order_id".
func (o Order) VtOrderID() string { return o.GatewayName + "." + o.OrderID }

// IsActive reports whether the order is still working at the venue.
func (o Order) IsActive() bool { return o.Status.IsActive() }

// CreateCancelRequest builds the cancel request for this order.
func (o Order) CreateCancelRequest() CancelRequest {
	return CancelRequest{
		OrderID:  o.OrderID,
		Symbol:   o.Symbol,
		Exchange: o.Exchange,
	}
}

// Trade is one fill of an order. Append-only; globally unique by
// (gateway, trade id); never mutated after creation.
type Trade struct {
	GatewayName string          `json:"gateway_name"`
	Symbol      string          `json:"symbol"`
	Exchange    enum.Exchange   `json:"exchange"`
	TradeID     string          `json:"trade_id"`
	OrderID     string          `json:"order_id"`
	Direction   enum.Direction  `json:"direction"`
	Offset      enum.Offset     `json:"offset"`
	Price       decimal.Decimal `json:"price"`
	Volume      decimal.Decimal `json:"volume"`
	Time        time.Time       `json:"time"`
}

// VtSymbol returns the instrument-level composite key.
func (t Trade) VtSymbol() string { return VtSymbol(t.Symbol, t.Exchange) }

// VtTradeID returns the gateway-qualified trade key.
func (t Trade) VtTradeID() string { return t.GatewayName + "." + t.TradeID }

// VtOrderID returns the gateway-qualified key of the order this fill belongs to.
func (t Trade) VtOrderID() string { return t.GatewayName + "." + t.OrderID }

// Position is the holding of one instrument on one side. Replaced wholesale
// by every position push from the owning gateway.
type Position struct {
	GatewayName string          `json:"gateway_name"`
	Symbol      string          `json:"symbol"`
	Exchange    enum.Exchange   `json:"exchange"`
	Direction   enum.Direction  `json:"direction"`
	Volume      decimal.Decimal `json:"volume"`
	Frozen      decimal.Decimal `json:"frozen"`
	YdVolume    decimal.Decimal `json:"yd_volume"`
	Price       decimal.Decimal `json:"price"`
	Pnl         decimal.Decimal `json:"pnl"`
}

// VtSymbol returns the instrument-level composite key.
func (p Position) VtSymbol() string { return VtSymbol(p.Symbol, p.Exchange) }

// VtPositionID returns the gateway-qualified position key,
// "gateway.symbol.exchange.direction".
func (p Position) VtPositionID() string {
	return p.GatewayName + "." + p.VtSymbol() + "." + string(p.Direction)
}

// Account is a funds snapshot, replaced wholesale on each account push.
type Account struct {
	GatewayName string          `json:"gateway_name"`
	AccountID   string          `json:"account_id"`
	Balance     decimal.Decimal `json:"balance"`
	Frozen      decimal.Decimal `json:"frozen"`
}

// VtAccountID returns the gateway-qualified account key.
func (a Account) VtAccountID() string { return a.GatewayName + "." + a.AccountID }

// Available returns the balance not locked by working orders.
func (a Account) Available() decimal.Decimal { return a.Balance.Sub(a.Frozen) }

// Quote is a two-sided manual quote. Same upsert lifecycle as Order.
type Quote struct {
	GatewayName string        `json:"gateway_name"`
	Symbol      string        `json:"symbol"`
	Exchange    enum.Exchange `json:"exchange"`
	QuoteID     string        `json:"quote_id"`

	BidPrice  decimal.Decimal `json:"bid_price"`
	BidVolume decimal.Decimal `json:"bid_volume"`
	BidOffset enum.Offset     `json:"bid_offset"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	AskVolume decimal.Decimal `json:"ask_volume"`
	AskOffset enum.Offset     `json:"ask_offset"`

	Status    enum.Status `json:"status"`
	Time      time.Time   `json:"time"`
	Reference string      `json:"reference"`
}

// VtSymbol returns the instrument-level composite key.
func (q Quote) VtSymbol() string { return VtSymbol(q.Symbol, q.Exchange) }

// VtQuoteID returns the gateway-qualified quote key.
func (q Quote) VtQuoteID() string { return q.GatewayName + "." + q.QuoteID }

// IsActive reports whether the quote is still working at the venue.
func (q Quote) IsActive() bool { return q.Status.IsActive() }

// CreateCancelRequest builds the cancel request for this quote.
func (q Quote) CreateCancelRequest() CancelRequest {
	return CancelRequest{
		OrderID:  q.QuoteID,
		Symbol:   q.Symbol,
		Exchange: q.Exchange,
	}
}

// LogEntry is a human-readable notification. Append-only, no identity
// beyond arrival order; the reconciliation engine keeps a bounded ring.
type LogEntry struct {
	Time        time.Time `json:"time"`
	Message     string    `json:"message"`
	Level       string    `json:"level"`
	GatewayName string    `json:"gateway_name"`
}

// NewLog stamps a log entry with the current time at INFO level.
func NewLog(message, gatewayName string) LogEntry {
	return LogEntry{
		Time:        time.Now(),
		Message:     message,
		Level:       "INFO",
		GatewayName: gatewayName,
	}
}
