// Package sim implements the paper-trading gateway: synthetic market data,
// immediate or resting fills, and reconnect replay. It exists so the
// runtime can run and be tested end to end without a broker connection.
package sim

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/gateway"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// GatewayName is the name this gateway registers under.
const GatewayName = "SIM"

const accountID = "paper"

var ErrNotConnected = errors.New("sim gateway not connected")

// replayDepth is how many recent trades Reconnect re-emits.
const replayDepth = 50

type instrument struct {
	contract  model.Contract
	basePrice decimal.Decimal
}

func defaultInstruments() []instrument {
	build := func(symbol string, exchange enum.Exchange, product enum.Product, price string) instrument {
		return instrument{
			contract: model.Contract{
				Symbol:    symbol,
				Exchange:  exchange,
				Name:      symbol + " (paper)",
				Product:   product,
				Size:      decimal.NewFromInt(1),
				PriceTick: decimal.RequireFromString("0.01"),
				MinVolume: decimal.NewFromInt(1),
			},
			basePrice: decimal.RequireFromString(price),
		}
	}
	return []instrument{
		build("AAPL", enum.ExchangeNASDAQ, enum.ProductEquity, "100"),
		build("MSFT", enum.ExchangeNASDAQ, enum.ProductEquity, "320"),
		build("BTCUSDT", enum.ExchangeBinance, enum.ProductSpot, "42000"),
	}
}

// Gateway is the paper-trading adapter. All market activity is driven by
// the dispatcher timer, so its events interleave with real gateways in
// queue order like any other producer.
type Gateway struct {
	gateway.Base

	mu          sync.Mutex
	connected   bool
	balance     decimal.Decimal
	nextID      int64
	instruments map[string]instrument
	subscribed  map[string]struct{}
	lastPrices  map[string]decimal.Decimal
	resting     map[string]model.Order
	positions   map[string]model.Position
	lastTrades  []model.Trade
	rng         *rand.Rand
}

// New builds a disconnected paper gateway over the event engine.
func New(ee *event.Engine) *Gateway {
	g := &Gateway{
		Base:        gateway.NewBase(ee, GatewayName),
		instruments: make(map[string]instrument),
		subscribed:  make(map[string]struct{}),
		lastPrices:  make(map[string]decimal.Decimal),
		resting:     make(map[string]model.Order),
		positions:   make(map[string]model.Position),
	}
	for _, inst := range defaultInstruments() {
		g.instruments[inst.contract.VtSymbol()] = inst
	}
	return g
}

// DefaultSetting implements gateway.Gateway.
func (g *Gateway) DefaultSetting() map[string]any {
	return map[string]any{
		"balance": 1_000_000.0,
		"seed":    0,
		"symbols": []any{},
	}
}

// Exchanges implements gateway.Gateway.
func (g *Gateway) Exchanges() []enum.Exchange {
	return []enum.Exchange{enum.ExchangeNASDAQ, enum.ExchangeBinance}
}

// Connect publishes the paper contract set and the initial account
// snapshot, then starts reacting to timer ticks.
func (g *Gateway) Connect(setting map[string]any) error {
	balance := settingFloat(setting, "balance", 1_000_000)
	if balance <= 0 {
		return errors.Errorf("sim balance must be positive, got %v", setting["balance"])
	}
	seed := int64(settingFloat(setting, "seed", 0))
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	wanted := settingSymbols(setting)

	g.mu.Lock()
	if len(wanted) > 0 {
		for vtSymbol, inst := range g.instruments {
			if _, keep := wanted[inst.contract.Symbol]; !keep {
				delete(g.instruments, vtSymbol)
			}
		}
	}
	g.connected = true
	g.balance = decimal.NewFromFloat(balance)
	g.rng = rand.New(rand.NewSource(seed))
	for vtSymbol, inst := range g.instruments {
		if _, ok := g.lastPrices[vtSymbol]; !ok {
			g.lastPrices[vtSymbol] = inst.basePrice
		}
	}
	contracts := make([]model.Contract, 0, len(g.instruments))
	for _, inst := range g.instruments {
		contracts = append(contracts, inst.contract)
	}
	g.mu.Unlock()

	for _, contract := range contracts {
		g.OnContract(contract)
	}
	g.emitAccount()
	g.EventEngine().Register(event.EventTimer, g.onTimer)
	g.WriteLog("paper gateway connected")
	return nil
}

// Subscribe starts the synthetic tick stream for one instrument.
func (g *Gateway) Subscribe(req model.SubscribeRequest) error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return ErrNotConnected
	}
	vtSymbol := req.VtSymbol()
	inst, ok := g.instruments[vtSymbol]
	if !ok {
		g.mu.Unlock()
		return errors.Errorf("sim gateway has no instrument %s", vtSymbol)
	}
	g.subscribed[vtSymbol] = struct{}{}
	price := g.lastPrices[vtSymbol]
	g.mu.Unlock()

	g.OnTick(g.buildTick(inst.contract, price))
	return nil
}

// SendOrder accepts the order, acknowledges it, and either fills it
// immediately (market orders, crossed limits) or leaves it resting until a
// later tick crosses it.
func (g *Gateway) SendOrder(req model.OrderRequest) (string, error) {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return "", ErrNotConnected
	}
	g.nextID++
	orderID := strconv.FormatInt(g.nextID, 10)
	order := req.CreateOrder(orderID, GatewayName)
	lastPrice, hasTick := g.lastPrices[order.VtSymbol()]
	g.mu.Unlock()

	g.OnOrder(order)

	order.Status = enum.StatusNotTraded
	g.OnOrder(order)

	fillPrice, fillNow := matchPrice(order, lastPrice, hasTick)
	if fillNow {
		g.fill(order, fillPrice)
		return order.VtOrderID(), nil
	}

	g.mu.Lock()
	g.resting[orderID] = order
	g.mu.Unlock()
	return order.VtOrderID(), nil
}

// CancelOrder cancels a resting order. Cancelling an unknown or already
// terminal order is reported through the log stream, not as an error, the
// same way a broker acknowledges asynchronously.
func (g *Gateway) CancelOrder(req model.CancelRequest) error {
	g.mu.Lock()
	order, ok := g.resting[req.OrderID]
	if ok {
		delete(g.resting, req.OrderID)
	}
	g.mu.Unlock()

	if !ok {
		g.WriteLog("cancel ignored, order " + req.OrderID + " not active")
		return nil
	}
	order.Status = enum.StatusCancelled
	g.OnOrder(order)
	return nil
}

// Close stops the tick stream and disconnects.
func (g *Gateway) Close() error {
	g.EventEngine().Unregister(event.EventTimer, g.onTimer)
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	g.WriteLog("paper gateway disconnected")
	return nil
}

// Reconnect simulates a session bounce: the gateway re-emits its recent
// trades with unchanged trade ids, the way broker APIs replay executions
// after a reconnect. Consumers must deduplicate.
func (g *Gateway) Reconnect() {
	g.mu.Lock()
	trades := make([]model.Trade, len(g.lastTrades))
	copy(trades, g.lastTrades)
	g.mu.Unlock()

	g.WriteLog("paper gateway reconnected, replaying executions")
	for _, trade := range trades {
		g.OnTrade(trade)
	}
}

func (g *Gateway) onTimer(event.Event) {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return
	}

	type pendingTick struct {
		contract model.Contract
		price    decimal.Decimal
	}
	ticks := make([]pendingTick, 0, len(g.subscribed))
	var fills []model.Order
	fillPrices := make(map[string]decimal.Decimal)

	for vtSymbol := range g.subscribed {
		inst := g.instruments[vtSymbol]
		price := g.walk(g.lastPrices[vtSymbol], inst.contract.PriceTick)
		g.lastPrices[vtSymbol] = price
		ticks = append(ticks, pendingTick{contract: inst.contract, price: price})

		for id, order := range g.resting {
			if order.VtSymbol() != vtSymbol {
				continue
			}
			if fillPrice, ok := matchPrice(order, price, true); ok {
				delete(g.resting, id)
				fills = append(fills, order)
				fillPrices[id] = fillPrice
			}
		}
	}
	g.mu.Unlock()

	for _, t := range ticks {
		g.OnTick(g.buildTick(t.contract, t.price))
	}
	for _, order := range fills {
		g.fill(order, fillPrices[order.OrderID])
	}
}

// walk moves the price by a few ticks in a random direction, floored at
// one tick.
func (g *Gateway) walk(price, tick decimal.Decimal) decimal.Decimal {
	steps := int64(g.rng.Intn(7)) - 3
	next := price.Add(tick.Mul(decimal.NewFromInt(steps)))
	if next.LessThan(tick) {
		return tick
	}
	return next
}

func (g *Gateway) buildTick(contract model.Contract, price decimal.Decimal) model.Tick {
	tick := model.Tick{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Time:      time.Now(),
		LastPrice: price,
		OpenPrice: price,
		HighPrice: price,
		LowPrice:  price,
	}
	for level := 0; level < model.MaxDepthLevels; level++ {
		offset := contract.PriceTick.Mul(decimal.NewFromInt(int64(level + 1)))
		tick.Bids[level] = model.PriceLevel{
			Price:  price.Sub(offset),
			Volume: decimal.NewFromInt(int64(100 * (level + 1))),
		}
		tick.Asks[level] = model.PriceLevel{
			Price:  price.Add(offset),
			Volume: decimal.NewFromInt(int64(100 * (level + 1))),
		}
	}
	return tick
}

// matchPrice decides whether an order executes against the current price
// and at what price.
func matchPrice(order model.Order, lastPrice decimal.Decimal, hasTick bool) (decimal.Decimal, bool) {
	if order.Type == enum.OrderTypeMarket {
		if hasTick {
			return lastPrice, true
		}
		return order.Price, true
	}
	if !hasTick {
		return decimal.Decimal{}, false
	}
	switch order.Direction {
	case enum.DirectionLong:
		if lastPrice.LessThanOrEqual(order.Price) {
			return order.Price, true
		}
	case enum.DirectionShort:
		if lastPrice.GreaterThanOrEqual(order.Price) {
			return order.Price, true
		}
	}
	return decimal.Decimal{}, false
}

// fill executes the full remaining volume, then publishes the trade, the
// terminal order state, and the refreshed position and account snapshots.
func (g *Gateway) fill(order model.Order, price decimal.Decimal) {
	g.mu.Lock()
	g.nextID++
	trade := model.Trade{
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		TradeID:   strconv.FormatInt(g.nextID, 10),
		OrderID:   order.OrderID,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     price,
		Volume:    order.Volume,
		Time:      time.Now(),
	}
	trade.GatewayName = GatewayName
	g.lastTrades = append(g.lastTrades, trade)
	if len(g.lastTrades) > replayDepth {
		g.lastTrades = g.lastTrades[len(g.lastTrades)-replayDepth:]
	}

	position := g.applyTrade(trade)

	notional := price.Mul(order.Volume)
	if order.Direction == enum.DirectionLong {
		g.balance = g.balance.Sub(notional)
	} else {
		g.balance = g.balance.Add(notional)
	}
	g.mu.Unlock()

	g.OnTrade(trade)

	order.Traded = order.Volume
	order.Status = enum.StatusAllTraded
	g.OnOrder(order)

	g.OnPosition(position)
	g.emitAccount()
}

// applyTrade folds a fill into the per-direction position book. Buys build
// the long book and sells build the short book when opening; closes reduce
// the opposite book. Caller holds g.mu.
func (g *Gateway) applyTrade(trade model.Trade) model.Position {
	direction := trade.Direction
	reduce := false
	if trade.Offset == enum.OffsetClose ||
		trade.Offset == enum.OffsetCloseToday ||
		trade.Offset == enum.OffsetCloseYesterday {
		direction = trade.Direction.Opposite()
		reduce = true
	}
	if trade.Offset == enum.OffsetNone && trade.Direction == enum.DirectionShort {
		// Net-style selling reduces the long book.
		direction = enum.DirectionLong
		reduce = true
	}

	key := trade.VtSymbol() + "." + string(direction)
	position, ok := g.positions[key]
	if !ok {
		position = model.Position{
			Symbol:    trade.Symbol,
			Exchange:  trade.Exchange,
			Direction: direction,
		}
		position.GatewayName = GatewayName
	}

	if reduce {
		position.Volume = position.Volume.Sub(trade.Volume)
	} else {
		newVolume := position.Volume.Add(trade.Volume)
		cost := position.Price.Mul(position.Volume).Add(trade.Price.Mul(trade.Volume))
		if newVolume.IsPositive() {
			position.Price = cost.Div(newVolume)
		}
		position.Volume = newVolume
	}
	g.positions[key] = position
	return position
}

func (g *Gateway) emitAccount() {
	g.mu.Lock()
	account := model.Account{
		AccountID: accountID,
		Balance:   g.balance,
	}
	g.mu.Unlock()
	g.OnAccount(account)
}

// settingSymbols reads the optional instrument whitelist; an empty set
// keeps the full default instrument list.
func settingSymbols(setting map[string]any) map[string]struct{} {
	raw, ok := setting["symbols"].([]any)
	if !ok {
		return nil
	}
	symbols := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if symbol, ok := item.(string); ok && symbol != "" {
			symbols[symbol] = struct{}{}
		}
	}
	return symbols
}

func settingFloat(setting map[string]any, field string, fallback float64) float64 {
	switch v := setting[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}
