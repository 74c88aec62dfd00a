package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quantix-Lab/vnpy/internal/app/riskmanager"
	"github.com/Quantix-Lab/vnpy/internal/app/webmonitor"
	"github.com/Quantix-Lab/vnpy/internal/gateway/sim"
	"github.com/Quantix-Lab/vnpy/internal/store"
	"github.com/Quantix-Lab/vnpy/pkg/config"
	"github.com/Quantix-Lab/vnpy/pkg/conn"
	"github.com/Quantix-Lab/vnpy/pkg/engine"
	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/Quantix-Lab/vnpy/pkg/model"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading runtime with the simulator gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to trader.yaml")
	return cmd
}

func run(cfg config.Config) error {
	if cfg.Profiling.Server != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   cfg.Profiling.Server,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start profiler")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	client, err := conn.New(conn.Option{Path: cfg.Database.Path})
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() {
		_ = client.Close()
	}()

	settings, err := store.New(client.DB())
	if err != nil {
		return errors.Wrap(err, "init setting store")
	}

	ee := event.New(cfg.Timer.Interval)
	m := engine.NewMainEngine(ee)
	m.AttachSettingStore(settings)

	if err := m.AddGateway(sim.New(ee)); err != nil {
		return err
	}
	if cfg.Risk.Enabled {
		if _, err := m.AddApp(riskmanager.NewApp(riskmanager.Config{
			Enabled:            true,
			MaxOrderVolume:     decimal.NewFromFloat(cfg.Risk.MaxOrderVolume),
			MaxOrdersPerWindow: cfg.Risk.MaxOrdersPerWindow,
			MaxActiveOrders:    cfg.Risk.MaxActiveOrders,
			SelfTradeGuard:     true,
		})); err != nil {
			return err
		}
	}
	if cfg.Web.Enabled {
		if _, err := m.AddApp(webmonitor.NewApp(webmonitor.Config{
			Host: cfg.Web.Host,
			Port: cfg.Web.Port,
		})); err != nil {
			return err
		}
	}

	if err := m.Connect(map[string]any{"balance": cfg.Sim.Balance}, sim.GatewayName); err != nil {
		return err
	}
	// Contract events flow through the dispatcher; give the OMS a moment to
	// absorb them before subscribing.
	waitForContracts(m, 2*time.Second)
	for _, contract := range m.GetAllContracts() {
		req := model.SubscribeRequest{Symbol: contract.Symbol, Exchange: contract.Exchange}
		if err := m.Subscribe(req, sim.GatewayName); err != nil {
			logs.Warnf("subscribe %s, err: %+v", contract.VtSymbol(), err)
		}
	}

	logs.Infof("trader up, gateways: %v", m.GetAllGatewayNames())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logs.Infof("shutting down")
	return m.Close()
}

func waitForContracts(m *engine.MainEngine, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for len(m.GetAllContracts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
