package model

import (
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// SubscribeRequest asks a gateway to start streaming ticks for one instrument.
type SubscribeRequest struct {
	Symbol   string        `json:"symbol"`
	Exchange enum.Exchange `json:"exchange"`
}

// VtSymbol returns the instrument-level composite key.
func (r SubscribeRequest) VtSymbol() string { return VtSymbol(r.Symbol, r.Exchange) }

// OrderRequest is the normalized command to place one order.
type OrderRequest struct {
	Symbol    string          `json:"symbol"`
	Exchange  enum.Exchange   `json:"exchange"`
	Direction enum.Direction  `json:"direction"`
	Offset    enum.Offset     `json:"offset"`
	Type      enum.OrderType  `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Reference string          `json:"reference"`
}

// VtSymbol returns the instrument-level composite key.
func (r OrderRequest) VtSymbol() string { return VtSymbol(r.Symbol, r.Exchange) }

// Validate rejects malformed requests before they reach any gateway.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New("order request missing symbol")
	}
	if r.Exchange == "" {
		return errors.New("order request missing exchange")
	}
	if r.Direction == "" {
		return errors.New("order request missing direction")
	}
	if r.Type == "" {
		return errors.New("order request missing order type")
	}
	if !r.Volume.IsPositive() {
		return errors.Errorf("order request volume must be positive, got %s", r.Volume)
	}
	if r.Type == enum.OrderTypeLimit && !r.Price.IsPositive() {
		return errors.Errorf("limit order request price must be positive, got %s", r.Price)
	}
	return nil
}

// CreateOrder builds the initial Submitting-state order for this request,
// stamped with the id assigned by the gateway.
func (r OrderRequest) CreateOrder(orderID, gatewayName string) Order {
	return Order{
		GatewayName: gatewayName,
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		OrderID:     orderID,
		Type:        r.Type,
		Direction:   r.Direction,
		Offset:      r.Offset,
		Price:       r.Price,
		Volume:      r.Volume,
		Status:      enum.StatusSubmitting,
		Time:        time.Now(),
		Reference:   r.Reference,
	}
}

// CancelRequest is the normalized command to cancel a working order or quote.
type CancelRequest struct {
	OrderID  string        `json:"order_id"`
	Symbol   string        `json:"symbol"`
	Exchange enum.Exchange `json:"exchange"`
}

// VtSymbol returns the instrument-level composite key.
func (r CancelRequest) VtSymbol() string { return VtSymbol(r.Symbol, r.Exchange) }

// QuoteRequest is the normalized command to place a two-sided quote.
type QuoteRequest struct {
	Symbol    string          `json:"symbol"`
	Exchange  enum.Exchange   `json:"exchange"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	BidVolume decimal.Decimal `json:"bid_volume"`
	BidOffset enum.Offset     `json:"bid_offset"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	AskVolume decimal.Decimal `json:"ask_volume"`
	AskOffset enum.Offset     `json:"ask_offset"`
	Reference string          `json:"reference"`
}

// VtSymbol returns the instrument-level composite key.
func (r QuoteRequest) VtSymbol() string { return VtSymbol(r.Symbol, r.Exchange) }

// Validate rejects malformed quote requests before they reach any gateway.
func (r QuoteRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New("quote request missing symbol")
	}
	if r.Exchange == "" {
		return errors.New("quote request missing exchange")
	}
	if !r.BidVolume.IsPositive() || !r.AskVolume.IsPositive() {
		return errors.New("quote request volumes must be positive")
	}
	if !r.BidPrice.IsPositive() || !r.AskPrice.IsPositive() {
		return errors.New("quote request prices must be positive")
	}
	if r.AskPrice.LessThanOrEqual(r.BidPrice) {
		return errors.Errorf("quote request crossed, bid %s >= ask %s", r.BidPrice, r.AskPrice)
	}
	return nil
}

// CreateQuote builds the initial Submitting-state quote for this request.
func (r QuoteRequest) CreateQuote(quoteID, gatewayName string) Quote {
	return Quote{
		GatewayName: gatewayName,
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		QuoteID:     quoteID,
		BidPrice:    r.BidPrice,
		BidVolume:   r.BidVolume,
		BidOffset:   r.BidOffset,
		AskPrice:    r.AskPrice,
		AskVolume:   r.AskVolume,
		AskOffset:   r.AskOffset,
		Status:      enum.StatusSubmitting,
		Time:        time.Now(),
		Reference:   r.Reference,
	}
}
