// Package webmonitor is the web dashboard backend: a REST query surface
// over the canonical collections, order entry/cancel endpoints, prometheus
// metrics, and a websocket channel pushing every event to connected
// dashboards.
package webmonitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Quantix-Lab/vnpy/internal/obs"
	"github.com/Quantix-Lab/vnpy/pkg/engine"
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

// AppName is the registered name of this application module.
const AppName = "WebMonitor"

const shutdownTimeout = 5 * time.Second

// Config defines the listen address.
type Config struct {
	Host string
	Port int
}

// NewApp returns the application descriptor for registration with a
// MainEngine.
func NewApp(cfg Config) engine.App {
	return engine.App{
		Name:        AppName,
		DisplayName: "Web Monitor",
		CreateEngine: func(main *engine.MainEngine, ee *event.Engine) (engine.Engine, error) {
			return newWebEngine(main, ee, cfg)
		},
	}
}

// WebEngine serves the dashboard API and owns the websocket hub.
type WebEngine struct {
	main      *engine.MainEngine
	ee        *event.Engine
	hub       *hub
	collector *obs.Collector
	srv       *http.Server
}

func newWebEngine(main *engine.MainEngine, ee *event.Engine, cfg Config) (*WebEngine, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8288
	}

	e := &WebEngine{
		main:      main,
		ee:        ee,
		hub:       newHub(),
		collector: obs.NewCollector(ee),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	e.registerRoutes(router)

	e.collector.Start()
	ee.RegisterGeneral(e.hub.onEvent)

	e.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	go func() {
		if err := e.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("web monitor listen on %s, err: %+v", e.srv.Addr, err)
		}
	}()
	logs.Infof("web monitor listening on %s", e.srv.Addr)
	return e, nil
}

// Name implements engine.Engine.
func (e *WebEngine) Name() string { return AppName }

// Close detaches from the event stream, closes every websocket client and
// shuts the HTTP server down.
func (e *WebEngine) Close() error {
	e.ee.UnregisterGeneral(e.hub.onEvent)
	e.collector.Stop()
	e.hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.srv.Shutdown(ctx)
}

func (e *WebEngine) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/gateways", e.handleGateways)
	api.GET("/ticks", e.handleTicks)
	api.GET("/orders", e.handleOrders)
	api.GET("/orders/:vt_orderid", e.handleOrder)
	api.GET("/active-orders", e.handleActiveOrders)
	api.GET("/trades", e.handleTrades)
	api.GET("/positions", e.handlePositions)
	api.GET("/accounts", e.handleAccounts)
	api.GET("/contracts", e.handleContracts)
	api.GET("/contracts/:vt_symbol", e.handleContract)
	api.GET("/quotes", e.handleQuotes)
	api.GET("/logs", e.handleLogs)
	api.POST("/orders", e.handleSendOrder)
	api.DELETE("/orders/:vt_orderid", e.handleCancelOrder)
	api.POST("/subscribe", e.handleSubscribe)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", e.handleWebsocket)
}
