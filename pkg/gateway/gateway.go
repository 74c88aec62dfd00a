// Package gateway defines the contract every broker/market-data adapter
// must satisfy and the Base helper that adapters embed to publish
// normalized events.
package gateway

import (
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/yanun0323/errors"
)

// ErrQuoteUnsupported is returned by gateways that do not implement the
// two-sided quote surface.
var ErrQuoteUnsupported = errors.New("gateway does not support quoting")

// Gateway adapts one broker/market-data connection. Implementations run
// their own I/O workers and communicate into the core exclusively by
// publishing normalized events through the embedded Base.
//
// Connect returns an error only for immediate misconfiguration; handshake
// results arrive later as Log and Contract events because the underlying
// protocols are asynchronous. Command methods are fire-and-forget beyond
// local validation: broker-side failures surface as Rejected order status
// or Log events, never as a synchronous error from the triggering call.
type Gateway interface {
	Name() string

	// DefaultSetting declares the connection fields this gateway requires,
	// field name to default value. Consumed by configuration surfaces.
	DefaultSetting() map[string]any

	// Exchanges lists the venues this gateway covers.
	Exchanges() []enum.Exchange

	Connect(setting map[string]any) error
	Subscribe(req model.SubscribeRequest) error

	// SendOrder returns the gateway-qualified vt order id assigned locally.
	SendOrder(req model.OrderRequest) (string, error)
	CancelOrder(req model.CancelRequest) error

	// SendQuote returns the gateway-qualified vt quote id; gateways without
	// quoting return ErrQuoteUnsupported (the embedded Base does this).
	SendQuote(req model.QuoteRequest) (string, error)
	CancelQuote(req model.CancelRequest) error

	Close() error
}

// Base carries the event engine handle and gateway name, and publishes
// normalized events. Adapters embed it and call the On* methods from their
// I/O workers; every push stamps the gateway name and emits both the
// general event type and the keyed variant.
type Base struct {
	ee   *event.Engine
	name string
}

// NewBase builds the embedded helper for a gateway implementation.
func NewBase(ee *event.Engine, name string) Base {
	return Base{ee: ee, name: name}
}

// Name returns the registered gateway name.
func (b *Base) Name() string { return b.name }

// EventEngine exposes the engine for adapters needing timer registration.
func (b *Base) EventEngine() *event.Engine { return b.ee }

// SendQuote rejects quoting by default.
func (b *Base) SendQuote(model.QuoteRequest) (string, error) {
	return "", ErrQuoteUnsupported
}

// CancelQuote rejects quoting by default.
func (b *Base) CancelQuote(model.CancelRequest) error {
	return ErrQuoteUnsupported
}

// OnEvent publishes a raw event.
func (b *Base) OnEvent(eventType string, data any) {
	_ = b.ee.Put(event.Event{Type: eventType, Data: data})
}

// OnTick publishes a tick snapshot.
func (b *Base) OnTick(tick model.Tick) {
	tick.GatewayName = b.name
	b.OnEvent(model.EventTick, tick)
	b.OnEvent(model.EventTickOf(tick.VtSymbol()), tick)
}

// OnOrder publishes an order update.
func (b *Base) OnOrder(order model.Order) {
	order.GatewayName = b.name
	b.OnEvent(model.EventOrder, order)
	b.OnEvent(model.EventOrderOf(order.VtOrderID()), order)
}

// OnTrade publishes a fill.
func (b *Base) OnTrade(trade model.Trade) {
	trade.GatewayName = b.name
	b.OnEvent(model.EventTrade, trade)
	b.OnEvent(model.EventTradeOf(trade.VtSymbol()), trade)
}

// OnPosition publishes a position snapshot.
func (b *Base) OnPosition(position model.Position) {
	position.GatewayName = b.name
	b.OnEvent(model.EventPosition, position)
	b.OnEvent(model.EventPositionOf(position.VtSymbol()), position)
}

// OnAccount publishes an account snapshot.
func (b *Base) OnAccount(account model.Account) {
	account.GatewayName = b.name
	b.OnEvent(model.EventAccount, account)
	b.OnEvent(model.EventAccountOf(account.VtAccountID()), account)
}

// OnQuote publishes a quote update.
func (b *Base) OnQuote(quote model.Quote) {
	quote.GatewayName = b.name
	b.OnEvent(model.EventQuote, quote)
	b.OnEvent(model.EventQuoteOf(quote.VtQuoteID()), quote)
}

// OnContract publishes an instrument definition.
func (b *Base) OnContract(contract model.Contract) {
	contract.GatewayName = b.name
	b.OnEvent(model.EventContract, contract)
}

// WriteLog publishes a log entry tagged with this gateway's name.
func (b *Base) WriteLog(message string) {
	b.OnEvent(model.EventLog, model.NewLog(message, b.name))
}
