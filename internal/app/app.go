package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/db"
	apphttp "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http"
	httpH "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/handlers"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/pipeline/extract"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/pipeline/generate_script"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/pipeline/run_blender"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

const (
	metricsNamespace = "mcp3d"
	shutdownTimeout  = 10 * time.Second
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *db.Service
	Repos   repos.Set
	Metrics *observability.Metrics
	Clients *Clients

	Server *apphttp.Server
	Runner JobRunner

	otelShutdown func(context.Context) error
}

// New loads configuration and wires every component. Nothing is started until Run.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log, cfg := a.Log, a.Cfg

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	a.Metrics = observability.NewMetrics(metricsNamespace)

	dbs, err := db.NewService(log, cfg.DB)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.DB = dbs
	if err := dbs.AutoMigrateAll(); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()
	a.Repos = repos.NewSet(theDB, log)

	stores, outputs, err := resolveStores(ctx, log, cfg.Storage)
	if err != nil {
		return err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return err
	}
	a.Clients = clients

	var pub services.JobEventPublisher
	if clients.Events != nil {
		pub = clients.Events
	}
	notify := services.NewJobNotifier(log, pub)
	runner := procrun.NewExecRunner(log)

	if cfg.RunWorker {
		registry := runtime.NewRegistry()
		for _, h := range []runtime.Handler{
			extract.New(theDB, log, a.Repos.ScaleRefs, a.Repos.Extractions),
			generate_script.New(theDB, log, a.Repos.Extractions, a.Repos.Scripts),
			run_blender.New(theDB, log, a.Repos.Scripts, a.Repos.Assets, runner, outputs, a.Metrics, cfg.Blender),
		} {
			if err := registry.Register(h); err != nil {
				return fmt.Errorf("register %s: %w", h.Type(), err)
			}
		}
		exec := runtime.NewExecutor(theDB, log, a.Repos.Jobs, registry, notify, a.Metrics)
		jr, err := clients.jobRunner(log, cfg, exec, a.Metrics)
		if err != nil {
			return fmt.Errorf("init job runner: %w", err)
		}
		a.Runner = jr
	}

	if cfg.RunServer {
		projects := services.NewProjectService(theDB, log, a.Repos.Projects)
		assets := services.NewAssetService(theDB, log, a.Repos.Assets, a.Repos.Projects, stores, cfg.MaxUploadBytes)
		a.Server = apphttp.NewServer(apphttp.RouterConfig{
			Log:                log,
			Metrics:            a.Metrics,
			ServiceName:        cfg.Otel.ServiceName,
			CORSOrigins:        cfg.CORSOrigins,
			MaxMultipartMemory: 8 << 20,

			HealthHandler:     httpH.NewHealthHandler(dbs),
			ProjectHandler:    httpH.NewProjectHandler(projects, assets),
			AssetHandler:      httpH.NewAssetHandler(assets),
			ExtractionHandler: httpH.NewExtractionHandler(services.NewExtractionService(theDB, log, a.Repos.Projects, a.Repos.ScaleRefs, a.Repos.Extractions)),
			ScriptHandler:     httpH.NewScriptHandler(services.NewScriptService(theDB, log, a.Repos.Scripts)),
			JobHandler:        httpH.NewJobHandler(services.NewJobService(theDB, log, a.Repos.Jobs, a.Repos.Projects, notify, clients.Dispatcher)),
			BlenderHandler:    httpH.NewBlenderHandler(services.NewBlenderService(log, runner, cfg.Blender, a.Metrics)),
		})
	}
	return nil
}

// Run serves HTTP and consumes jobs, as configured, until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil && a.Runner == nil {
		return fmt.Errorf("nothing to run: RUN_SERVER and RUN_WORKER are both false")
	}
	g, gctx := errgroup.WithContext(ctx)
	if a.Server != nil {
		g.Go(func() error { return a.Server.Run(gctx, a.Cfg.HTTPAddr) })
	}
	if a.Runner != nil {
		g.Go(func() error { return a.Runner.Run(gctx) })
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
