package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
	"github.com/slopezpereyra/icf-visualization-app/internal/health"
	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
	"github.com/slopezpereyra/icf-visualization-app/internal/metrics"
	"github.com/slopezpereyra/icf-visualization-app/internal/service"
	"github.com/slopezpereyra/icf-visualization-app/internal/state"
	"github.com/slopezpereyra/icf-visualization-app/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		dataDir     string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.StringVar(&dataDir, "data-dir", "", "Read the result tables from this directory (overrides data.source and data.dir)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("icfdash %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		return
	}

	// Load configuration
	configSvc, err := config.NewService(configPath, logger.NewNopLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := configSvc.Get()
	if dataDir != "" {
		cfg.Data.Source = config.SourceDir
		cfg.Data.Dir = dataDir
	}

	// Initialize logger
	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	configSvc.SetLogger(log.Named("config"))

	log.Info("Starting ICF dashboard",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"config", configSvc.Path(),
	)

	// Create main context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the four result tables; the dashboard cannot run without them.
	src, err := dataset.NewSource(ctx, cfg.Data)
	if err != nil {
		log.Error("Failed to create data source", "error", err)
		os.Exit(1)
	}
	dataLog := log.Named("dataset").With("source", src.Describe())
	store, err := dataset.Load(ctx, src, dataset.FilesFromConfig(cfg.Data.Files))
	if err != nil {
		dataLog.Error("Failed to load dataset", "error", err)
		os.Exit(1)
	}
	info := store.Info()
	dataLog.Info("Dataset loaded",
		"checksum", info.Checksum,
		"trials", info.Rows[dataset.TableTrials],
		"subject_level", info.Rows[dataset.TableSubjectLevel],
		"group_level", info.Rows[dataset.TableGroupLevel],
		"participants", info.Rows[dataset.TableParticipants],
		"trials_dropped", info.TrialsDropped,
	)

	m := metrics.New()
	m.ObserveLoad(info)

	dash := dashboard.New(aggregate.New(store), dashboard.Options{
		HeatmapBins: cfg.Charts.HeatmapBins,
		Observer:    m,
	})

	// Create service manager
	svcMgr := service.NewManager(log)

	stateMgr, err := state.NewManager(cfg, log.Named("state"))
	if err != nil {
		log.Error("Failed to open state database", "path", cfg.State.DBPath, "error", err)
		os.Exit(1)
	}
	svcMgr.Register(stateMgr)

	webServer := web.NewServer(&cfg.Web, dash, log.Named("web"))
	webServer.SetVersion(version)
	webServer.SetStateManager(stateMgr)
	webServer.SetConfigService(configSvc)
	webServer.SetMetrics(m)
	svcMgr.Register(webServer)

	if cfg.Health.Enabled {
		addr := net.JoinHostPort("", strconv.Itoa(cfg.Health.Port))
		healthMgr := health.NewManager(log.Named("health"), svcMgr, addr)
		healthMgr.RegisterChecker(&health.SystemChecker{})
		healthMgr.RegisterChecker(health.NewDatabaseChecker(cfg.State.DBPath))
		healthMgr.RegisterChecker(health.NewDatasetChecker(store))
		svcMgr.Register(healthMgr)
	}

	// Start services
	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		shutdown(svcMgr, log)
		os.Exit(1)
	}

	svcMgr.GetEventBus().Publish(service.Event{
		Type:   service.EventTypeDatasetLoaded,
		Source: "main",
		Data:   map[string]interface{}{"info": info},
	})

	configSvc.Watch(func(ctx context.Context, oldConfig, newConfig *config.Config) error {
		if oldConfig.Log.Level != newConfig.Log.Level {
			if err := log.SetLevel(newConfig.Log.Level); err != nil {
				return err
			}
		}
		svcMgr.GetEventBus().Publish(service.Event{
			Type:   service.EventTypeConfigReloaded,
			Source: "config",
			Data:   map[string]interface{}{"path": configSvc.Path()},
		})
		return nil
	})

	// SIGHUP reloads configuration, SIGINT and SIGTERM shut down
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := configSvc.Reload(ctx); err != nil {
				log.Error("Failed to reload configuration", "error", err)
			}
			continue
		}
		log.Info("Received shutdown signal", "signal", sig)
		break
	}

	cancel()
	if err := shutdown(svcMgr, log); err != nil {
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

func shutdown(svcMgr *service.Manager, log *logger.Logger) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		return err
	}
	return nil
}
