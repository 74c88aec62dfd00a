package engine

import (
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/model"
)

// Engine is a functional engine plugged into the runtime: strategy, risk,
// analytics, monitoring. The MainEngine owns its lifecycle.
type Engine interface {
	Name() string
	Close() error
}

// App describes an application module. CreateEngine builds the module's
// functional engine against the registry and event engine; DisplayName and
// Icon are UI-facing metadata the core passes through without interpreting.
type App struct {
	Name         string
	DisplayName  string
	Icon         string
	CreateEngine func(main *MainEngine, ee *event.Engine) (Engine, error)
}

// SettingStore persists per-gateway connection settings between restarts.
// This is the only state the core persists; trading history is an external
// recorder's job.
type SettingStore interface {
	Save(gatewayName string, setting map[string]any) error
	Load(gatewayName string) (map[string]any, error)
}

// OrderFilter inspects an order request bound for gatewayName before it
// reaches the gateway. A non-nil error vetoes the order; risk modules
// register filters through MainEngine.AddOrderFilter.
type OrderFilter func(req model.OrderRequest, gatewayName string) error
