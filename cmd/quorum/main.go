package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/config"
	"github.com/quorumhq/quorum/internal/gateway"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/internal/notify"
	"github.com/quorumhq/quorum/internal/server"
	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/orchestrator"
	"github.com/quorumhq/quorum/search"
	"github.com/quorumhq/quorum/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultModeratorPrompt = "You are the moderator of a panel of AI research specialists. " +
	"You analyze user questions, plan research, route questions to specialists, and synthesize their " +
	"findings into clear reports. You always answer in the exact JSON format you are asked for."

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("quorum %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()
	logger.Info("starting quorum",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
	)

	collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)
	catalog := llm.DefaultCatalog(logger)

	provider := llm.NewOpenAICompat(llm.OpenAICompatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	client := llm.NewRateLimited(provider, llm.RateLimitConfig{
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, logger)

	moderator, err := buildModerator(cfg.Moderator, catalog, client)
	if err != nil {
		logger.Fatal("configure moderator", zap.Error(err))
	}
	registry := agent.NewRegistry(moderator, logger)

	var searcher search.Provider
	if cfg.Search.Enabled {
		searcher = search.NewHTTPProvider(search.HTTPConfig{
			BaseURL: cfg.Search.BaseURL,
			Timeout: cfg.Search.Timeout,
		}, logger)
	}
	if err := registerSpecialists(registry, catalog, client, searcher, logger); err != nil {
		logger.Fatal("register specialists", zap.Error(err))
	}
	factory := agent.NewFactory(catalog, client, logger)

	engineConfig := orchestrator.DefaultConfig()
	engineConfig.Debate.TurnDelay = cfg.Debate.TurnDelay
	engineConfig.Debate.ContextWindow = cfg.Debate.ContextWindow
	engineConfig.MaxTranscriptTokens = cfg.Orchestrator.MaxTranscriptTokens
	engine := orchestrator.New(engineConfig, registry, factory, collector, logger)
	defer engine.Close()

	hub := notify.NewHub(logger)
	notifiers := notify.Fanout{hub}
	if cfg.Redis.Enabled {
		redisNotifier, err := notify.NewRedisNotifier(context.Background(), notify.RedisConfig{
			Enabled:       true,
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		}, logger)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer redisNotifier.Close()
		notifiers = append(notifiers, redisNotifier)
	}
	engine.OnConversationChanged(func(ctx context.Context, conv *types.Conversation) {
		notifiers.ConversationChanged(ctx, conv)
	})

	gw := gateway.New(engine, hub, catalog, logger)
	apiServer := server.NewManager(gw.Routes(), server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	if err := apiServer.Start(); err != nil {
		logger.Fatal("start API server", zap.Error(err))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := server.NewManager(metricsMux, server.Config{
		Addr:            cfg.Server.MetricsAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Fatal("start metrics server", zap.Error(err))
	}

	apiServer.WaitForShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error { return apiServer.Shutdown(shutdownCtx) })
	g.Go(func() error { return metricsServer.Shutdown(shutdownCtx) })
	if err := g.Wait(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("quorum stopped")
}

// buildModerator constructs the moderator agent from its catalog entry.
func buildModerator(cfg config.ModeratorConfig, catalog *llm.Catalog, client llm.Client) (*agent.Agent, error) {
	desc, ok := catalog.Resolve(cfg.ModelID)
	if !ok {
		return nil, types.NewError(types.ErrModelNotFound, "moderator model "+cfg.ModelID+" is not in the catalog")
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultModeratorPrompt
	}
	return agent.New(types.AgentSpec{
		ID:           "moderator",
		Name:         "Moderator",
		Description:  "Coordinates the specialist panel",
		Model:        desc.Model,
		SystemPrompt: prompt,
	}, client, nil), nil
}

// registerSpecialists builds one standing specialist per catalog model.
func registerSpecialists(registry *agent.Registry, catalog *llm.Catalog, client llm.Client, searcher search.Provider, logger *zap.Logger) error {
	for _, desc := range catalog.List() {
		var caps []types.Capability
		if desc.SupportsSearch {
			caps = append(caps, types.CapabilitySearch)
		}
		spec := types.AgentSpec{
			ID:           desc.ID,
			Name:         desc.Name,
			Description:  "Research specialist backed by " + desc.Name,
			Model:        desc.Model,
			SystemPrompt: "You are " + desc.Name + ", a research specialist. Answer the moderator's questions thoroughly and cite your sources when you can.",
			Capabilities: caps,
		}
		bot := agent.New(spec, client, logger)
		if searcher != nil {
			bot = bot.WithSearch(searcher)
		}
		if err := registry.AddBot(bot); err != nil {
			return err
		}
	}
	return nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printUsage() {
	fmt.Println(`quorum - multi-agent conversation orchestration engine

Usage:
  quorum serve [--config config.yaml]   Start the API server
  quorum version                        Show version information
  quorum help                           Show this help`)
}
