package engine

import (
	"sync"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/yanun0323/logs"
)

// DefaultLogCapacity bounds the in-memory log ring kept by the OMS.
const DefaultLogCapacity = 1000

// OmsEngine is the state reconciliation engine: the sole writer of the
// canonical contract/tick/order/trade/position/account/quote collections.
//
// All mutation happens on the event engine's single delivery goroutine,
// which makes the upsert and regression checks race-free; the RWMutex only
// protects concurrent readers (query callers on other goroutines) against
// in-progress writes.
type OmsEngine struct {
	ee *event.Engine

	mu        sync.RWMutex
	ticks     map[string]model.Tick
	orders    map[string]model.Order
	trades    map[string]model.Trade
	positions map[string]model.Position
	accounts  map[string]model.Account
	contracts map[string]model.Contract
	quotes    map[string]model.Quote

	activeOrders map[string]model.Order
	activeQuotes map[string]model.Quote

	logRing []model.LogEntry
	logNext int
	logFull bool
}

func newOmsEngine(ee *event.Engine, logCapacity int) *OmsEngine {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}
	oms := &OmsEngine{
		ee:           ee,
		ticks:        make(map[string]model.Tick),
		orders:       make(map[string]model.Order),
		trades:       make(map[string]model.Trade),
		positions:    make(map[string]model.Position),
		accounts:     make(map[string]model.Account),
		contracts:    make(map[string]model.Contract),
		quotes:       make(map[string]model.Quote),
		activeOrders: make(map[string]model.Order),
		activeQuotes: make(map[string]model.Quote),
		logRing:      make([]model.LogEntry, logCapacity),
	}
	oms.registerHandlers()
	return oms
}

func (o *OmsEngine) registerHandlers() {
	o.ee.Register(model.EventTick, o.processTickEvent)
	o.ee.Register(model.EventOrder, o.processOrderEvent)
	o.ee.Register(model.EventTrade, o.processTradeEvent)
	o.ee.Register(model.EventPosition, o.processPositionEvent)
	o.ee.Register(model.EventAccount, o.processAccountEvent)
	o.ee.Register(model.EventContract, o.processContractEvent)
	o.ee.Register(model.EventQuote, o.processQuoteEvent)
	o.ee.Register(model.EventLog, o.processLogEvent)
}

func (o *OmsEngine) unregisterHandlers() {
	o.ee.Unregister(model.EventTick, o.processTickEvent)
	o.ee.Unregister(model.EventOrder, o.processOrderEvent)
	o.ee.Unregister(model.EventTrade, o.processTradeEvent)
	o.ee.Unregister(model.EventPosition, o.processPositionEvent)
	o.ee.Unregister(model.EventAccount, o.processAccountEvent)
	o.ee.Unregister(model.EventContract, o.processContractEvent)
	o.ee.Unregister(model.EventQuote, o.processQuoteEvent)
	o.ee.Unregister(model.EventLog, o.processLogEvent)
}

func (o *OmsEngine) processTickEvent(ev event.Event) {
	tick, ok := ev.Data.(model.Tick)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks[tick.VtSymbol()] = tick
}

func (o *OmsEngine) processOrderEvent(ev event.Event) {
	order, ok := ev.Data.(model.Order)
	if !ok {
		return
	}
	id := order.VtOrderID()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Traded volume is monotonically non-decreasing for the life of an
	// order; a regression means a duplicate or out-of-order replay from a
	// reconnecting gateway and the update is dropped.
	if prev, exists := o.orders[id]; exists && order.Traded.LessThan(prev.Traded) {
		logs.Warnf("dropping anomalous order update %s, traded regressed %s -> %s",
			id, prev.Traded, order.Traded)
		return
	}

	o.orders[id] = order
	if order.IsActive() {
		o.activeOrders[id] = order
	} else {
		delete(o.activeOrders, id)
	}
}

func (o *OmsEngine) processTradeEvent(ev event.Event) {
	trade, ok := ev.Data.(model.Trade)
	if !ok {
		return
	}
	id := trade.VtTradeID()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Gateways may resend trades after reconnect; ingestion is idempotent.
	if _, dup := o.trades[id]; dup {
		logs.Warnf("dropping duplicate trade %s", id)
		return
	}
	o.trades[id] = trade

	// Network jitter can legitimately deliver a trade a moment before its
	// order update; record the trade anyway.
	if _, known := o.orders[trade.VtOrderID()]; !known {
		logs.Warnf("trade %s references unknown order %s", id, trade.VtOrderID())
	}
}

func (o *OmsEngine) processPositionEvent(ev event.Event) {
	position, ok := ev.Data.(model.Position)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.positions[position.VtPositionID()] = position
}

func (o *OmsEngine) processAccountEvent(ev event.Event) {
	account, ok := ev.Data.(model.Account)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accounts[account.VtAccountID()] = account
}

func (o *OmsEngine) processContractEvent(ev event.Event) {
	contract, ok := ev.Data.(model.Contract)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	// Instrument-level lookup policy: first registered gateway wins. A
	// second gateway reporting the same instrument keeps its own orders and
	// trades under gateway-qualified keys, but does not shadow the lookup.
	if prev, exists := o.contracts[contract.VtSymbol()]; exists && prev.GatewayName != contract.GatewayName {
		logs.Warnf("contract %s already published by gateway %s, keeping first",
			contract.VtSymbol(), prev.GatewayName)
		return
	}
	o.contracts[contract.VtSymbol()] = contract
}

func (o *OmsEngine) processQuoteEvent(ev event.Event) {
	quote, ok := ev.Data.(model.Quote)
	if !ok {
		return
	}
	id := quote.VtQuoteID()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[id] = quote
	if quote.IsActive() {
		o.activeQuotes[id] = quote
	} else {
		delete(o.activeQuotes, id)
	}
}

func (o *OmsEngine) processLogEvent(ev event.Event) {
	entry, ok := ev.Data.(model.LogEntry)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logRing[o.logNext] = entry
	o.logNext++
	if o.logNext == len(o.logRing) {
		o.logNext = 0
		o.logFull = true
	}
}

// GetTick returns the latest tick for a vt symbol.
func (o *OmsEngine) GetTick(vtSymbol string) (model.Tick, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tick, ok := o.ticks[vtSymbol]
	return tick, ok
}

// GetOrder returns the canonical order for a vt order id.
func (o *OmsEngine) GetOrder(vtOrderID string) (model.Order, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	order, ok := o.orders[vtOrderID]
	return order, ok
}

// GetTrade returns the trade for a vt trade id.
func (o *OmsEngine) GetTrade(vtTradeID string) (model.Trade, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	trade, ok := o.trades[vtTradeID]
	return trade, ok
}

// GetPosition returns the position for a vt position id.
func (o *OmsEngine) GetPosition(vtPositionID string) (model.Position, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	position, ok := o.positions[vtPositionID]
	return position, ok
}

// GetAccount returns the account snapshot for a vt account id.
func (o *OmsEngine) GetAccount(vtAccountID string) (model.Account, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	account, ok := o.accounts[vtAccountID]
	return account, ok
}

// GetContract returns the contract for a vt symbol.
func (o *OmsEngine) GetContract(vtSymbol string) (model.Contract, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	contract, ok := o.contracts[vtSymbol]
	return contract, ok
}

// GetQuote returns the canonical quote for a vt quote id.
func (o *OmsEngine) GetQuote(vtQuoteID string) (model.Quote, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	quote, ok := o.quotes[vtQuoteID]
	return quote, ok
}

// GetAllTicks returns a copy of every tick snapshot.
func (o *OmsEngine) GetAllTicks() []model.Tick {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Tick, 0, len(o.ticks))
	for _, tick := range o.ticks {
		out = append(out, tick)
	}
	return out
}

// GetAllOrders returns a copy of every order, active and terminal.
func (o *OmsEngine) GetAllOrders() []model.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Order, 0, len(o.orders))
	for _, order := range o.orders {
		out = append(out, order)
	}
	return out
}

// GetAllTrades returns a copy of every trade.
func (o *OmsEngine) GetAllTrades() []model.Trade {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Trade, 0, len(o.trades))
	for _, trade := range o.trades {
		out = append(out, trade)
	}
	return out
}

// GetAllPositions returns a copy of every position snapshot.
func (o *OmsEngine) GetAllPositions() []model.Position {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Position, 0, len(o.positions))
	for _, position := range o.positions {
		out = append(out, position)
	}
	return out
}

// GetAllAccounts returns a copy of every account snapshot.
func (o *OmsEngine) GetAllAccounts() []model.Account {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Account, 0, len(o.accounts))
	for _, account := range o.accounts {
		out = append(out, account)
	}
	return out
}

// GetAllContracts returns a copy of every contract.
func (o *OmsEngine) GetAllContracts() []model.Contract {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Contract, 0, len(o.contracts))
	for _, contract := range o.contracts {
		out = append(out, contract)
	}
	return out
}

// GetAllQuotes returns a copy of every quote, active and terminal.
func (o *OmsEngine) GetAllQuotes() []model.Quote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Quote, 0, len(o.quotes))
	for _, quote := range o.quotes {
		out = append(out, quote)
	}
	return out
}

// GetAllActiveOrders returns a copy of every order not yet terminal.
func (o *OmsEngine) GetAllActiveOrders() []model.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Order, 0, len(o.activeOrders))
	for _, order := range o.activeOrders {
		out = append(out, order)
	}
	return out
}

// GetAllActiveQuotes returns a copy of every quote not yet terminal.
func (o *OmsEngine) GetAllActiveQuotes() []model.Quote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.Quote, 0, len(o.activeQuotes))
	for _, quote := range o.activeQuotes {
		out = append(out, quote)
	}
	return out
}

// GetLogs returns the retained log entries in chronological order.
func (o *OmsEngine) GetLogs() []model.LogEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.logFull {
		out := make([]model.LogEntry, o.logNext)
		copy(out, o.logRing[:o.logNext])
		return out
	}
	out := make([]model.LogEntry, 0, len(o.logRing))
	out = append(out, o.logRing[o.logNext:]...)
	out = append(out, o.logRing[:o.logNext]...)
	return out
}

// Close detaches the engine from the event stream.
func (o *OmsEngine) Close() {
	o.unregisterHandlers()
}
