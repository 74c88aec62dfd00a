// Package riskmanager is the order-flow risk application module. It vetoes
// outgoing orders through the MainEngine filter hook; it never touches
// canonical state directly.
package riskmanager

import (
	"sync"

	"github.com/Quantix-Lab/vnpy/pkg/engine"
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/Quantix-Lab/vnpy/pkg/model/enum"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// AppName is the registered name of this application module.
const AppName = "RiskManager"

// ErrRiskRejected is the sentinel wrapped by every veto this module issues.
var ErrRiskRejected = errors.New("order rejected by risk manager")

// Config defines the order-flow limits.
type Config struct {
	Enabled            bool
	KillSwitch         bool
	MaxOrderVolume     decimal.Decimal
	MaxOrdersPerWindow int // orders allowed between two timer ticks; 0 disables
	MaxActiveOrders    int // 0 disables
	SelfTradeGuard     bool
}

// NewApp returns the application descriptor for registration with a
// MainEngine.
func NewApp(cfg Config) engine.App {
	return engine.App{
		Name:        AppName,
		DisplayName: "Risk Manager",
		CreateEngine: func(main *engine.MainEngine, ee *event.Engine) (engine.Engine, error) {
			return newRiskEngine(main, ee, cfg), nil
		},
	}
}

// RiskEngine counts order flow per timer window and enforces the limits.
type RiskEngine struct {
	main *engine.MainEngine
	ee   *event.Engine

	mu          sync.Mutex
	cfg         Config
	windowCount int
}

func newRiskEngine(main *engine.MainEngine, ee *event.Engine, cfg Config) *RiskEngine {
	eng := &RiskEngine{main: main, ee: ee, cfg: cfg}
	main.AddOrderFilter(eng.CheckOrder)
	ee.Register(event.EventTimer, eng.onTimer)
	return eng
}

// Name implements engine.Engine.
func (e *RiskEngine) Name() string { return AppName }

// Close detaches the window-reset handler. The filter stays registered but
// passes everything once the engine is disabled.
func (e *RiskEngine) Close() error {
	e.ee.Unregister(event.EventTimer, e.onTimer)
	e.mu.Lock()
	e.cfg.Enabled = false
	e.mu.Unlock()
	return nil
}

// Config returns the current limits.
func (e *RiskEngine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig swaps the limits atomically.
func (e *RiskEngine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *RiskEngine) onTimer(event.Event) {
	e.mu.Lock()
	e.windowCount = 0
	e.mu.Unlock()
}

// CheckOrder is the filter registered on the MainEngine. It runs on the
// caller's goroutine and must stay fast.
func (e *RiskEngine) CheckOrder(req model.OrderRequest, gatewayName string) error {
	e.mu.Lock()
	cfg := e.cfg
	if !cfg.Enabled {
		e.mu.Unlock()
		return nil
	}
	e.windowCount++
	count := e.windowCount
	e.mu.Unlock()

	if cfg.KillSwitch {
		return errors.Wrap(ErrRiskRejected, "kill switch engaged")
	}
	if cfg.MaxOrderVolume.IsPositive() && req.Volume.GreaterThan(cfg.MaxOrderVolume) {
		return errors.Wrapf(ErrRiskRejected, "volume %s exceeds limit %s", req.Volume, cfg.MaxOrderVolume)
	}
	if cfg.MaxOrdersPerWindow > 0 && count > cfg.MaxOrdersPerWindow {
		return errors.Wrapf(ErrRiskRejected, "order flow %d exceeds window limit %d", count, cfg.MaxOrdersPerWindow)
	}

	active := e.main.GetAllActiveOrders()
	if cfg.MaxActiveOrders > 0 && len(active) >= cfg.MaxActiveOrders {
		return errors.Wrapf(ErrRiskRejected, "active orders %d at limit %d", len(active), cfg.MaxActiveOrders)
	}
	if cfg.SelfTradeGuard {
		if err := checkSelfTrade(req, active); err != nil {
			return err
		}
	}
	return nil
}

// checkSelfTrade vetoes an order that would cross one of our own working
// orders on the same instrument.
func checkSelfTrade(req model.OrderRequest, active []model.Order) error {
	if req.Type != enum.OrderTypeLimit {
		return nil
	}
	for _, order := range active {
		if order.VtSymbol() != req.VtSymbol() || order.Direction == req.Direction {
			continue
		}
		crossed := false
		switch req.Direction {
		case enum.DirectionLong:
			crossed = req.Price.GreaterThanOrEqual(order.Price)
		case enum.DirectionShort:
			crossed = req.Price.LessThanOrEqual(order.Price)
		}
		if crossed {
			return errors.Wrapf(ErrRiskRejected, "would cross own order %s at %s", order.VtOrderID(), order.Price)
		}
	}
	return nil
}
