package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	appagent "github.com/pthora/eldwatch/internal/application/agent"
	"github.com/pthora/eldwatch/internal/application/fixer"
	"github.com/pthora/eldwatch/internal/application/progress"
	"github.com/pthora/eldwatch/internal/config"
	"github.com/pthora/eldwatch/internal/domain/agentstate"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	domfixes "github.com/pthora/eldwatch/internal/domain/fixes"
	aiopenai "github.com/pthora/eldwatch/internal/infra/ai/openai"
	"github.com/pthora/eldwatch/internal/infra/automation/browser"
	mysqlp "github.com/pthora/eldwatch/internal/infra/db/mysql"
	postgresp "github.com/pthora/eldwatch/internal/infra/db/postgres"
	"github.com/pthora/eldwatch/internal/infra/fortex"
	"github.com/pthora/eldwatch/internal/infra/httpserver"
	minioStore "github.com/pthora/eldwatch/internal/infra/storage"
	"github.com/pthora/eldwatch/internal/infra/ws"
	"github.com/pthora/eldwatch/internal/middleware"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx := context.Background()

	// agent_config is seeded from the yaml defaults on first run; after
	// that the database row wins.
	agentDefaults := agentstate.Configuration{
		State:              agentstate.StateStopped,
		PollingInterval:    cfg.Agent.PollingInterval,
		MaxConcurrentFixes: cfg.Agent.MaxConcurrentFixes,
		RequireApproval:    cfg.Agent.RequireApproval,
		DryRun:             cfg.Agent.DryRun,
	}

	// connect database, driver dari config
	var db *sql.DB
	var agentRepo agentstate.Repository
	var errRepo detecterrors.Repository
	var fixRepo domfixes.Repository
	var ruleRepo domfixes.RuleRepository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect error")
		}
		agentRepo = postgresp.NewAgentRepository(db, agentDefaults)
		errRepo = postgresp.NewErrorRepository(db)
		fixRepo = postgresp.NewFixRepository(db)
		ruleRepo = postgresp.NewRuleRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("mysql connect error")
		}
		agentRepo = mysqlp.NewAgentRepository(db, agentDefaults)
		errRepo = mysqlp.NewErrorRepository(db)
		fixRepo = mysqlp.NewFixRepository(db)
		ruleRepo = mysqlp.NewRuleRepository(db)
	}
	defer db.Close()

	// platform client
	platform := fortex.New(
		cfg.Fortex.APIURL,
		cfg.Fortex.AuthToken,
		cfg.Fortex.SystemName,
		cfg.Fortex.RequestTimeout,
		log,
	)

	// init minio untuk screenshot diagnostics
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("minio init error")
	}

	// browser automation session
	mgr := browser.NewManager(browser.Config{
		Headless:      cfg.Automation.Headless,
		SessionFile:   cfg.Automation.SessionFile,
		ScreenshotDir: cfg.Automation.ScreenshotDir,
		ActionTimeout: cfg.Automation.ActionTimeout,
		LoginURL:      cfg.Fortex.UIURL,
		Username:      cfg.Fortex.UIUsername,
		Password:      cfg.Fortex.UIPassword,
	}, store, log)

	// AI advisor is optional; without it manual-review errors get no
	// generated advice.
	var advisor fixer.Advisor
	if cfg.OpenAI.APIKey != "" {
		advisor = aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	builder := fixer.DefaultBuilder(advisor, errRepo, log)
	for _, k := range cfg.Agent.ReviewOnlyKinds {
		kind := detecterrors.Kind(k)
		builder.RegisterFirst(kind, fixer.NewLogReview(kind, log))
	}
	registry := builder.Build(log)
	tracker := progress.NewTracker()
	hub := ws.NewHub(log)

	agentSvc := &appagent.Service{
		Config:          agentRepo,
		Errors:          errRepo,
		Fixes:           fixRepo,
		Rules:           ruleRepo,
		Platform:        platform,
		Registry:        registry,
		Browser:         mgr,
		Tracker:         tracker,
		Notifier:        hub,
		Clock:           appagent.SystemClock{},
		Log:             log,
		CompanyIDs:      cfg.Agent.CompanyIDs,
		SelectedDrivers: cfg.Agent.SelectedDrivers,
		AttemptTimeout:  cfg.Automation.AttemptTimeout,
	}

	health := middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"platform": &middleware.PlatformHealthChecker{Client: platform},
	})

	handler := httpserver.NewRouter(agentSvc, errRepo, fixRepo, platform, tracker, httpserver.Options{
		Hub:       hub,
		Health:    health,
		APIKeys:   cfg.Server.APIKeys,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		Log:       log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown: stop the agent (drains in-flight fixes) before
	// the HTTP server goes away.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if st := agentSvc.State(); st == agentstate.StateRunning || st == agentstate.StatePaused {
		if err := agentSvc.Stop(ctx2); err != nil {
			log.Error().Err(err).Msg("agent stop error")
		}
	}
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
