package engine

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/gateway"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

// fakeGateway records every command forwarded to it and echoes order events
// back through the embedded Base like a real adapter would.
type fakeGateway struct {
	gateway.Base

	mu         sync.Mutex
	nextID     int
	sent       []model.OrderRequest
	cancelled  []model.CancelRequest
	subscribed []model.SubscribeRequest
	closed     bool
	closeErr   error
}

func newFakeGateway(ee *event.Engine, name string) *fakeGateway {
	return &fakeGateway{Base: gateway.NewBase(ee, name)}
}

func (g *fakeGateway) DefaultSetting() map[string]any { return map[string]any{"key": ""} }
func (g *fakeGateway) Exchanges() []enum.Exchange     { return []enum.Exchange{enum.ExchangeLocal} }

func (g *fakeGateway) Connect(map[string]any) error { return nil }

func (g *fakeGateway) Subscribe(req model.SubscribeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribed = append(g.subscribed, req)
	return nil
}

func (g *fakeGateway) SendOrder(req model.OrderRequest) (string, error) {
	g.mu.Lock()
	g.nextID++
	orderID := strconv.Itoa(g.nextID)
	g.sent = append(g.sent, req)
	g.mu.Unlock()

	order := req.CreateOrder(orderID, g.Name())
	g.OnOrder(order)
	return order.VtOrderID(), nil
}

func (g *fakeGateway) CancelOrder(req model.CancelRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, req)
	return nil
}

func (g *fakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return g.closeErr
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func limitBuy(volume int64) model.OrderRequest {
	return model.OrderRequest{
		Symbol:    "AAPL",
		Exchange:  enum.ExchangeNASDAQ,
		Direction: enum.DirectionLong,
		Offset:    enum.OffsetOpen,
		Type:      enum.OrderTypeLimit,
		Price:     decimal.NewFromInt(100),
		Volume:    decimal.NewFromInt(volume),
	}
}

func TestMainEngineDuplicateGateway(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	ee := m.EventEngine()
	require.NoError(t, m.AddGateway(newFakeGateway(ee, "FAKE")))

	err := m.AddGateway(newFakeGateway(ee, "FAKE"))
	require.ErrorIs(t, err, ErrDuplicateGateway)

	names := m.GetAllGatewayNames()
	assert.Equal(t, []string{"FAKE"}, names)
}

func TestMainEngineSendOrderUnknownGateway(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	vtOrderID, err := m.SendOrder(limitBuy(1), "NOPE")
	require.ErrorIs(t, err, ErrUnknownGateway)
	assert.Empty(t, vtOrderID)
	assert.Empty(t, m.GetAllOrders(), "a failed send must not leave an order behind")
}

func TestMainEngineSendOrderValidatesFirst(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	gw := newFakeGateway(m.EventEngine(), "FAKE")
	require.NoError(t, m.AddGateway(gw))

	bad := limitBuy(0)
	_, err := m.SendOrder(bad, "FAKE")
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, gw.sentCount(), "invalid request must not reach the gateway")
}

func TestMainEngineOrderFilterVeto(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	gw := newFakeGateway(m.EventEngine(), "FAKE")
	require.NoError(t, m.AddGateway(gw))

	veto := errors.New("too big")
	m.AddOrderFilter(func(req model.OrderRequest, gatewayName string) error {
		if req.Volume.GreaterThan(decimal.NewFromInt(100)) {
			return veto
		}
		return nil
	})

	_, err := m.SendOrder(limitBuy(500), "FAKE")
	require.ErrorIs(t, err, veto)
	assert.Zero(t, gw.sentCount())

	vtOrderID, err := m.SendOrder(limitBuy(5), "FAKE")
	require.NoError(t, err)
	assert.Equal(t, "FAKE.1", vtOrderID)
	assert.Equal(t, 1, gw.sentCount())
}

func TestMainEngineOrderFlowReachesOms(t *testing.T) {
	m := NewMainEngine(nil)

	gw := newFakeGateway(m.EventEngine(), "FAKE")
	require.NoError(t, m.AddGateway(gw))

	vtOrderID, err := m.SendOrder(limitBuy(10), "FAKE")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := m.GetOrder(vtOrderID)
		return ok
	}, time.Second, time.Millisecond)

	order, _ := m.GetOrder(vtOrderID)
	assert.Equal(t, enum.StatusSubmitting, order.Status)
	assert.Len(t, m.GetAllActiveOrders(), 1)

	require.NoError(t, m.CancelOrder(order.CreateCancelRequest(), "FAKE"))
	require.NoError(t, m.Close())
}

func TestMainEngineSubscribeRequiresContract(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	gw := newFakeGateway(m.EventEngine(), "FAKE")
	require.NoError(t, m.AddGateway(gw))

	req := model.SubscribeRequest{Symbol: "AAPL", Exchange: enum.ExchangeNASDAQ}
	err := m.Subscribe(req, "FAKE")
	require.ErrorIs(t, err, ErrInvalidRequest)

	gw.OnContract(model.Contract{Symbol: "AAPL", Exchange: enum.ExchangeNASDAQ})
	require.Eventually(t, func() bool {
		_, ok := m.GetContract("AAPL.NASDAQ")
		return ok
	}, time.Second, time.Millisecond)

	require.NoError(t, m.Subscribe(req, "FAKE"))
}

func TestMainEngineQuoteUnsupported(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	require.NoError(t, m.AddGateway(newFakeGateway(m.EventEngine(), "FAKE")))

	req := model.QuoteRequest{
		Symbol:    "AAPL",
		Exchange:  enum.ExchangeNASDAQ,
		BidPrice:  decimal.NewFromInt(99),
		BidVolume: decimal.NewFromInt(1),
		AskPrice:  decimal.NewFromInt(101),
		AskVolume: decimal.NewFromInt(1),
	}
	_, err := m.SendQuote(req, "FAKE")
	require.ErrorIs(t, err, gateway.ErrQuoteUnsupported)
}

type namedEngine struct {
	name     string
	closed   *[]string
	closeErr error
}

func (e *namedEngine) Name() string { return e.name }
func (e *namedEngine) Close() error {
	*e.closed = append(*e.closed, e.name)
	return e.closeErr
}

func appFor(eng Engine) App {
	return App{
		Name: eng.Name(),
		CreateEngine: func(*MainEngine, *event.Engine) (Engine, error) {
			return eng, nil
		},
	}
}

func TestMainEngineCloseOrderAndAggregation(t *testing.T) {
	m := NewMainEngine(nil)

	var closed []string
	first := &namedEngine{name: "first", closed: &closed}
	second := &namedEngine{name: "second", closed: &closed, closeErr: errors.New("shutdown failed")}

	_, err := m.AddApp(appFor(first))
	require.NoError(t, err)
	_, err = m.AddApp(appFor(second))
	require.NoError(t, err)

	gw := newFakeGateway(m.EventEngine(), "FAKE")
	require.NoError(t, m.AddGateway(gw))

	err = m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown failed")

	// engines close in reverse registration order, before gateways
	assert.Equal(t, []string{"second", "first"}, closed)
	assert.True(t, gw.closed)

	// idempotent: same result, no second close sequence
	require.Equal(t, err, m.Close())
	assert.Len(t, closed, 2)
}

func TestMainEngineDuplicateApp(t *testing.T) {
	m := NewMainEngine(nil)
	defer func() { _ = m.Close() }()

	var closed []string
	_, err := m.AddApp(appFor(&namedEngine{name: "dup", closed: &closed}))
	require.NoError(t, err)

	_, err = m.AddApp(appFor(&namedEngine{name: "dup", closed: &closed}))
	require.ErrorIs(t, err, ErrDuplicateEngine)
}

func TestMainEngineWriteLogRetained(t *testing.T) {
	m := NewMainEngine(nil)

	m.WriteLog("hello", "FAKE")
	require.Eventually(t, func() bool { return len(m.GetLogs()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "hello", m.GetLogs()[0].Message)
	require.NoError(t, m.Close())
}
