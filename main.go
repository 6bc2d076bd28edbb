package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/activities"
	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/db"
	"github.com/surajsub/sapgui-step-dsl/emitter"
	"github.com/surajsub/sapgui-step-dsl/handlers"
	"github.com/surajsub/sapgui-step-dsl/logger"
	"github.com/surajsub/sapgui-step-dsl/providers"
	"github.com/surajsub/sapgui-step-dsl/reports"
	"github.com/surajsub/sapgui-step-dsl/runner"
	"github.com/surajsub/sapgui-step-dsl/workers"
	"go.temporal.io/sdk/client"
)

func main() {
	configPath := flag.String("config", "customers.yaml", "Service configuration file")
	stopQueue := flag.String("stop", "", "Task queue to leave stopped (optional)")
	compileCase := flag.String("compile", "", "Compile a case file and write its steps file")
	outPath := flag.String("out", "steps.py", "Steps file written by -compile")
	appendOut := flag.Bool("append", false, "Append to the steps file instead of replacing it")
	strict := flag.Bool("strict", false, "Treat compile warnings as errors")
	runCase := flag.String("run", "", "Run a case file against the dry-run driver and print the result")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	var err error
	switch {
	case *compileCase != "":
		err = compileFile(*compileCase, *outPath, *appendOut, *strict, log)
	case *runCase != "":
		err = dryRun(*runCase, *strict, log, os.Stdout)
	default:
		err = serve(*configPath, *stopQueue, log)
	}
	if err != nil {
		log.WithError(err).Fatal("sapgui-step-dsl failed")
	}
}

// loadCase reads a .json case file with the flat JSON layout and anything else
// as YAML.
func loadCase(path string) (*cases.Case, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return cases.LoadYAML(path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file %s: %w", path, err)
	}
	c, err := cases.ParseJSON(b)
	if err != nil {
		return nil, fmt.Errorf("case file %s: %w", path, err)
	}
	return c, nil
}

func compileLoaded(path string, strict bool, log *logrus.Logger) (*cases.Case, *compiler.Program, error) {
	c, err := loadCase(path)
	if err != nil {
		return nil, nil, err
	}
	prog, err := cases.Compile(c, compiler.New(compiler.WithStrict(strict), compiler.WithLogger(log)))
	if err != nil {
		return c, prog, err
	}
	for _, d := range prog.Diagnostics {
		log.WithField("kind", d.Kind.String()).Warn(d.Error())
	}
	return c, prog, nil
}

func compileFile(path, out string, appendOut, strict bool, log *logrus.Logger) error {
	c, prog, err := compileLoaded(path, strict, log)
	if err != nil {
		return err
	}
	if err := emitter.WriteStepsFile(out, prog, appendOut); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"case": c.Name, "steps": len(c.Steps), "out": out}).Info("Case compiled")
	return nil
}

// dryRun runs a case against the recording driver and writes the result as JSON.
func dryRun(path string, strict bool, log *logrus.Logger, w io.Writer) error {
	c, _, err := compileLoaded(path, strict, log)
	if err != nil {
		return err
	}

	caseLog, closer, err := logger.NewLogger(c.LogConfig)
	if err != nil {
		return err
	}
	defer closer.Close()

	zl, err := logger.NewZapLogger(c.LogConfig.LogVerbosity)
	if err != nil {
		return fmt.Errorf("failed to build zap logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	runLog := logger.NewZapAdapter(zl)

	driver := &runner.DryRunDriver{Logger: runLog}
	result, err := runner.New(runner.DriverExecutor{Driver: driver}, runner.WithLogger(runLog)).Run(c)
	if err != nil {
		return err
	}
	for _, shot := range append(result.PassedScreenShots, result.FailedScreenShots...) {
		logger.Shot(caseLog, shot)
	}
	logger.Status(caseLog, fmt.Sprintf("%s: %s", c.Name, result.Result))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// buildActivities wires the optional vault and GitHub integrations.
func buildActivities(ctx context.Context, cfg *Config, store *db.Store, log *logrus.Logger, runLog *logger.ZapAdapter) (*activities.Activities, error) {
	acts := &activities.Activities{
		Driver: &runner.DryRunDriver{Logger: runLog},
		Store:  store,
	}
	if cfg.Vault != nil {
		secrets, err := providers.NewVaultSecretsProvider(ctx, *cfg.Vault, log)
		if err != nil {
			return nil, err
		}
		acts.Secrets = secrets
	}
	if cfg.GitHub != nil {
		reporter, err := reports.NewGitHubReporter(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Labels, log)
		if err != nil {
			return nil, err
		}
		if cfg.GitHub.BaseURL != "" {
			if err := reporter.SetBaseURL(cfg.GitHub.BaseURL); err != nil {
				return nil, err
			}
		}
		acts.Reporter = reporter
	}
	return acts, nil
}

func serve(configPath, stopQueue string, bootLog *logrus.Logger) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	log, closer, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	dbCfg, err := databaseEnv()
	if err != nil {
		return err
	}
	store, err := db.OpenPostgres(dbCfg.user, dbCfg.password, dbCfg.name)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	zl, err := logger.NewZapLogger(cfg.Logging.LogVerbosity)
	if err != nil {
		return fmt.Errorf("failed to build zap logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	temporalLog := logger.NewZapAdapter(zl)
	options := client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporalLog,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acts, err := buildActivities(ctx, cfg, store, log, temporalLog)
	if err != nil {
		return err
	}

	c, err := client.Dial(options)
	if err != nil {
		return fmt.Errorf("failed to create Temporal client: %w", err)
	}
	defer c.Close()

	manager := workers.NewWorkerManager(c, acts, log)
	for _, customer := range cfg.Customers {
		if customer.TaskQueue == stopQueue {
			log.Infof("Leaving task queue %s stopped", stopQueue)
			continue
		}
		if err := manager.StartWorker(customer.Name, customer.TaskQueue); err != nil {
			return err
		}
	}
	defer manager.StopAll()

	conn := handlers.StartTemporalClient(ctx, options, log)
	api := &handlers.API{
		Store:     store,
		GetClient: conn.GetClient,
		Logger:    log,
		Namespace: cfg.Temporal.Namespace,
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.CustomHTTPErrorHandler
	e.Use(handlers.RequestIDMiddleware)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	handlers.RegisterRoutes(e, api)

	go func() {
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Echo server stopped")
			stop()
		}
	}()
	bootLog.WithField("listen", cfg.Listen).Info("Server started")

	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
