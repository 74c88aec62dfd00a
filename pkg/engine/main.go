/*
Package engine implements the orchestration registry and the state
reconciliation engine.

# Module
  - MainEngine: binds gateways, functional engines and application modules
    together; routes commands to gateways and read queries to the OMS
  - OmsEngine: consumes the normalized event stream and maintains the
    canonical contract/order/trade/position/account collections

# Flow

Gateway adapters publish normalized events into the event engine; the OMS
(and any other subscriber) consumes them on the delivery goroutine.
Commands flow the opposite way: caller -> MainEngine -> gateway.
*/
package engine

import (
	"strings"
	"sync"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/gateway"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrDuplicateGateway = errors.New("gateway name already registered")
	ErrDuplicateEngine  = errors.New("engine name already registered")
	ErrUnknownGateway   = errors.New("gateway not registered")
	ErrInvalidRequest   = errors.New("invalid request")
)

// MainEngine is the single entry point of the runtime. It is an explicitly
// constructed object, not a process-wide singleton; tests run several
// independent instances side by side.
type MainEngine struct {
	ee  *event.Engine
	oms *OmsEngine

	mu          sync.RWMutex
	gateways    map[string]gateway.Gateway
	engines     map[string]Engine
	engineOrder []string
	apps        []App
	filters     []OrderFilter
	store       SettingStore

	closeOnce sync.Once
	closeErr  error
}

// NewMainEngine wires the registry around an event engine and starts it.
// A nil engine gets a default one with the standard timer interval.
func NewMainEngine(ee *event.Engine) *MainEngine {
	if ee == nil {
		ee = event.New(0)
	}
	m := &MainEngine{
		ee:       ee,
		gateways: make(map[string]gateway.Gateway),
		engines:  make(map[string]Engine),
	}
	m.oms = newOmsEngine(ee, DefaultLogCapacity)
	ee.Start()
	return m
}

// EventEngine exposes the underlying dispatcher for subscribers.
func (m *MainEngine) EventEngine() *event.Engine { return m.ee }

// AttachSettingStore enables persistence of per-gateway connection settings.
func (m *MainEngine) AttachSettingStore(store SettingStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// AddGateway registers a gateway adapter under its own name.
func (m *MainEngine) AddGateway(gw gateway.Gateway) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := gw.Name()
	if _, exists := m.gateways[name]; exists {
		return errors.Wrapf(ErrDuplicateGateway, "name: %s", name)
	}
	m.gateways[name] = gw
	return nil
}

// AddApp instantiates an application module's engine and registers it.
func (m *MainEngine) AddApp(app App) (Engine, error) {
	if app.CreateEngine == nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "app %s has no engine constructor", app.Name)
	}
	eng, err := app.CreateEngine(m, m.ee)
	if err != nil {
		return nil, errors.Wrapf(err, "create engine for app %s", app.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.engines[eng.Name()]; exists {
		return nil, errors.Wrapf(ErrDuplicateEngine, "name: %s", eng.Name())
	}
	m.engines[eng.Name()] = eng
	m.engineOrder = append(m.engineOrder, eng.Name())
	m.apps = append(m.apps, app)
	return eng, nil
}

// GetAllApps returns the registered application descriptors.
func (m *MainEngine) GetAllApps() []App {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]App, len(m.apps))
	copy(out, m.apps)
	return out
}

// GetEngine returns a registered functional engine by name.
func (m *MainEngine) GetEngine(name string) (Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[name]
	return eng, ok
}

// GetGateway returns a registered gateway by name.
func (m *MainEngine) GetGateway(name string) (gateway.Gateway, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gw, ok := m.gateways[name]
	return gw, ok
}

// GetAllGatewayNames lists the registered gateway names.
func (m *MainEngine) GetAllGatewayNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		out = append(out, name)
	}
	return out
}

// GetDefaultSetting returns the connection fields a gateway requires.
func (m *MainEngine) GetDefaultSetting(gatewayName string) (map[string]any, error) {
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}
	return gw.DefaultSetting(), nil
}

// AddOrderFilter appends a veto hook run by SendOrder before forwarding.
func (m *MainEngine) AddOrderFilter(filter OrderFilter) {
	if filter == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
}

// Connect forwards connection settings to the named gateway. Missing fields
// are prefilled from the persisted record of the previous session, and the
// merged setting is saved back. Success or failure of the handshake itself
// is reported later through Log events.
func (m *MainEngine) Connect(setting map[string]any, gatewayName string) error {
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}

	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()

	merged := make(map[string]any, len(setting))
	if store != nil {
		if saved, err := store.Load(gatewayName); err != nil {
			logs.Warnf("load saved setting for gateway %s, err: %+v", gatewayName, err)
		} else {
			for k, v := range saved {
				merged[k] = v
			}
		}
	}
	for k, v := range setting {
		merged[k] = v
	}
	if store != nil {
		if err := store.Save(gatewayName, merged); err != nil {
			logs.Warnf("save setting for gateway %s, err: %+v", gatewayName, err)
		}
	}

	m.WriteLog("connecting gateway "+gatewayName, gatewayName)
	if err := gw.Connect(merged); err != nil {
		return errors.Wrapf(err, "connect gateway %s", gatewayName)
	}
	return nil
}

// Subscribe asks the named gateway to stream ticks for one instrument. The
// contract must already be resolvable through the OMS.
func (m *MainEngine) Subscribe(req model.SubscribeRequest, gatewayName string) error {
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}
	if _, found := m.oms.GetContract(req.VtSymbol()); !found {
		return errors.Wrapf(ErrInvalidRequest, "unknown contract %s", req.VtSymbol())
	}
	return gw.Subscribe(req)
}

// SendOrder validates the request, runs the registered order filters, then
// forwards to the named gateway and returns the assigned vt order id. An
// unregistered gateway name fails fast without touching any network
// resource; broker-side rejection arrives later as Rejected order status.
func (m *MainEngine) SendOrder(req model.OrderRequest, gatewayName string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "%v", err)
	}
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return "", errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}

	m.mu.RLock()
	filters := make([]OrderFilter, len(m.filters))
	copy(filters, m.filters)
	m.mu.RUnlock()
	for _, filter := range filters {
		if err := filter(req, gatewayName); err != nil {
			m.WriteLog("order vetoed: "+err.Error(), gatewayName)
			return "", err
		}
	}

	return gw.SendOrder(req)
}

// CancelOrder forwards a cancel command to the named gateway.
func (m *MainEngine) CancelOrder(req model.CancelRequest, gatewayName string) error {
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}
	return gw.CancelOrder(req)
}

// SendQuote validates and forwards a two-sided quote request.
func (m *MainEngine) SendQuote(req model.QuoteRequest, gatewayName string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "%v", err)
	}
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return "", errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}
	return gw.SendQuote(req)
}

// CancelQuote forwards a quote cancel command to the named gateway.
func (m *MainEngine) CancelQuote(req model.CancelRequest, gatewayName string) error {
	gw, ok := m.GetGateway(gatewayName)
	if !ok {
		return errors.Wrapf(ErrUnknownGateway, "name: %s", gatewayName)
	}
	return gw.CancelQuote(req)
}

// WriteLog publishes a log entry through the event stream.
func (m *MainEngine) WriteLog(message, gatewayName string) {
	_ = m.ee.Put(event.Event{Type: model.EventLog, Data: model.NewLog(message, gatewayName)})
}

// Query facade: pure reads against the OMS canonical collections, safe from
// any goroutine while events are being processed.

func (m *MainEngine) GetTick(vtSymbol string) (model.Tick, bool)         { return m.oms.GetTick(vtSymbol) }
func (m *MainEngine) GetOrder(vtOrderID string) (model.Order, bool)      { return m.oms.GetOrder(vtOrderID) }
func (m *MainEngine) GetTrade(vtTradeID string) (model.Trade, bool)      { return m.oms.GetTrade(vtTradeID) }
func (m *MainEngine) GetPosition(id string) (model.Position, bool)       { return m.oms.GetPosition(id) }
func (m *MainEngine) GetAccount(vtAccountID string) (model.Account, bool) { return m.oms.GetAccount(vtAccountID) }
func (m *MainEngine) GetContract(vtSymbol string) (model.Contract, bool) { return m.oms.GetContract(vtSymbol) }
func (m *MainEngine) GetQuote(vtQuoteID string) (model.Quote, bool)      { return m.oms.GetQuote(vtQuoteID) }
func (m *MainEngine) GetAllTicks() []model.Tick                          { return m.oms.GetAllTicks() }
func (m *MainEngine) GetAllOrders() []model.Order                        { return m.oms.GetAllOrders() }
func (m *MainEngine) GetAllTrades() []model.Trade                        { return m.oms.GetAllTrades() }
func (m *MainEngine) GetAllPositions() []model.Position                  { return m.oms.GetAllPositions() }
func (m *MainEngine) GetAllAccounts() []model.Account                    { return m.oms.GetAllAccounts() }
func (m *MainEngine) GetAllContracts() []model.Contract                  { return m.oms.GetAllContracts() }
func (m *MainEngine) GetAllQuotes() []model.Quote                        { return m.oms.GetAllQuotes() }
func (m *MainEngine) GetAllActiveOrders() []model.Order                  { return m.oms.GetAllActiveOrders() }
func (m *MainEngine) GetAllActiveQuotes() []model.Quote                  { return m.oms.GetAllActiveQuotes() }
func (m *MainEngine) GetLogs() []model.LogEntry                          { return m.oms.GetLogs() }

// Close shuts the runtime down exactly once: functional engines in reverse
// registration order, then every gateway, then the event engine (draining
// queued events). Individual failures do not stop the sequence; they are
// aggregated into the returned error.
func (m *MainEngine) Close() error {
	m.closeOnce.Do(func() {
		var failures []string

		m.mu.RLock()
		engineOrder := make([]string, len(m.engineOrder))
		copy(engineOrder, m.engineOrder)
		engines := make(map[string]Engine, len(m.engines))
		for name, eng := range m.engines {
			engines[name] = eng
		}
		gateways := make([]gateway.Gateway, 0, len(m.gateways))
		for _, gw := range m.gateways {
			gateways = append(gateways, gw)
		}
		m.mu.RUnlock()

		for i := len(engineOrder) - 1; i >= 0; i-- {
			eng := engines[engineOrder[i]]
			if err := eng.Close(); err != nil {
				failures = append(failures, "engine "+eng.Name()+": "+err.Error())
				logs.Errorf("close engine %s, err: %+v", eng.Name(), err)
			}
		}
		for _, gw := range gateways {
			if err := gw.Close(); err != nil {
				failures = append(failures, "gateway "+gw.Name()+": "+err.Error())
				logs.Errorf("close gateway %s, err: %+v", gw.Name(), err)
			}
		}

		// Stop drains queued events through the OMS before it detaches, so
		// the tail of an order's lifecycle is never lost.
		m.ee.Stop()
		m.oms.Close()

		if len(failures) > 0 {
			m.closeErr = errors.Errorf("close completed with failures: %s", strings.Join(failures, "; "))
		}
	})
	return m.closeErr
}
