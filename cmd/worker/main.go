package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"crawlcast/internal/domain/entity"
	pgRepo "crawlcast/internal/infra/adapter/persistence/postgres"
	"crawlcast/internal/infra/aiprovider"
	"crawlcast/internal/infra/db"
	"crawlcast/internal/infra/httpfetch"
	"crawlcast/internal/infra/notifier"
	"crawlcast/internal/infra/parser"
	workerPkg "crawlcast/internal/infra/worker"
	"crawlcast/internal/usecase/aiorchestrator"
	"crawlcast/internal/usecase/crawl"
	"crawlcast/internal/usecase/embed"
	"crawlcast/internal/usecase/enrich"
	"crawlcast/internal/usecase/keyword"
	"crawlcast/internal/usecase/notify"
	"crawlcast/internal/usecase/pipeline"
	"crawlcast/internal/usecase/report"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM sources LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Int("coordinator_worker_pool_size", workerConfig.CoordinatorWorkerPoolSize),
		slog.Int("crawl_interval_minutes", workerConfig.CrawlIntervalMinutes),
		slog.Duration("job_hard_timeout", workerConfig.JobHardTimeout),
		slog.Duration("job_soft_timeout", workerConfig.JobSoftTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	// Initialize Discord notification channel
	discordConfig := loadDiscordConfig(logger)
	var discordChannel notify.Channel
	if discordConfig.Enabled {
		discordChannel = notify.NewDiscordChannel(discordConfig)
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	// Initialize Slack notification channel
	slackConfig := loadSlackConfig(logger)
	var slackChannel notify.Channel
	if slackConfig.Enabled {
		slackChannel = notify.NewSlackChannel(slackConfig)
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	var channels []notify.Channel
	if discordChannel != nil {
		channels = append(channels, discordChannel)
	}
	if slackChannel != nil {
		channels = append(channels, slackChannel)
	}

	routes := loadNotificationRoutes(logger)
	notifyService := notify.NewService(channels, routes, nil, workerConfig.NotifyMaxConcurrent)
	logger.Info("Notification service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", workerConfig.NotifyMaxConcurrent))

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, notifyService)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	orchestrator := setupOrchestrator(logger)
	coordinator := setupCoordinator(logger, database, notifyService, orchestrator, workerConfig)
	reportGenerator := report.New(pgRepo.NewContentRepo(database), orchestrator)

	startCronWorker(ctx, logger, coordinator, reportGenerator, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupCoordinator wires the crawl -> enrich -> notify pipeline: the
// per-kind parsers, the rate-limited HTTP fetcher, the AI orchestrator
// (and through it the crawler's self-heal and the enricher's analysis),
// the keyword matcher, and every repository the coordinator touches.
func setupCoordinator(logger *slog.Logger, database *sql.DB, notifyService notify.Service, orchestrator *aiorchestrator.Orchestrator, cfg *workerPkg.WorkerConfig) *pipeline.Coordinator {
	sourceRepo := pgRepo.NewSourceRepo(database)
	contentRepo := pgRepo.NewContentRepo(database)
	jobRepo := pgRepo.NewJobExecutionRepo(database)
	keywordRepo := pgRepo.NewKeywordGroupRepo(database)

	fetcher := httpfetch.New(httpfetch.LoadConfigFromEnv())

	parsers := map[entity.SourceKind]parser.Parser{
		entity.KindFeed:        parser.NewFeedParser(),
		entity.KindHTML:        parser.NewHTMLListParser(),
		entity.KindChannelFeed: parser.NewChannelFeedParser(),
		entity.KindSearchIndex: parser.NewSearchIndexParser(""),
	}

	crawler := crawl.New(fetcher, parsers, orchestrator)
	enricher := enrich.New(orchestrator)

	var matcher *keyword.Matcher
	groups, err := keywordRepo.ListActive(context.Background())
	if err != nil {
		logger.Warn("failed to load keyword groups, keyword tagging disabled", slog.Any("error", err))
	} else if len(groups) > 0 {
		matcher = keyword.New(groups, orchestrator, true)
		logger.Info("keyword matcher initialized", slog.Int("groups", len(groups)))
	} else {
		logger.Info("no active keyword groups, keyword tagging disabled")
	}

	pipelineCfg := pipeline.Config{
		WorkerPoolSize:       cfg.CoordinatorWorkerPoolSize,
		CrawlIntervalMinutes: cfg.CrawlIntervalMinutes,
		HardTimeout:          cfg.JobHardTimeout,
		SoftTimeout:          cfg.JobSoftTimeout,
	}

	var matcherIface pipeline.KeywordMatcher
	if matcher != nil {
		matcherIface = matcher
	}

	embedHook := setupEmbedHook(logger, database)

	return pipeline.New(sourceRepo, contentRepo, jobRepo, crawler, enricher, matcherIface, notifyService, embedHook, pipelineCfg)
}

// setupEmbedHook wires background content embedding for similarity search.
// It is optional: without an OPENAI_API_KEY, embedding is skipped and the
// pipeline runs with a nil Embedder.
func setupEmbedHook(logger *slog.Logger, database *sql.DB) pipeline.Embedder {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		logger.Info("OPENAI_API_KEY not set, content embedding disabled")
		return nil
	}

	generator := aiprovider.NewOpenAIEmbedder(key)
	embeddingRepo := pgRepo.NewContentEmbeddingRepo(database)
	logger.Info("content embedding enabled", slog.String("model", aiprovider.EmbeddingModel))

	return embed.New(generator, embeddingRepo, aiprovider.EmbeddingModel)
}

// setupOrchestrator builds the AI orchestrator from whichever provider API
// keys are present in the environment. Providers without a configured key
// are simply omitted from the routing table; Request/RequestParallel skip
// what's absent. At least one provider key is required: crawl self-heal,
// content enrichment, and semantic keyword matching all depend on it.
func setupOrchestrator(logger *slog.Logger) *aiorchestrator.Orchestrator {
	providers := map[aiprovider.ProviderID]aiprovider.Provider{}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		providers[aiprovider.ProviderAnthropic] = aiprovider.NewAnthropic(key, aiprovider.DefaultAnthropicConfig())
		logger.Info("AI provider configured", slog.String("provider", "anthropic"))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		providers[aiprovider.ProviderOpenAI] = aiprovider.NewOpenAI(key, aiprovider.DefaultOpenAIConfig())
		logger.Info("AI provider configured", slog.String("provider", "openai"))
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		providers[aiprovider.ProviderGoogle] = aiprovider.NewGoogle(key, aiprovider.DefaultGoogleConfig())
		logger.Info("AI provider configured", slog.String("provider", "google"))
	}
	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		providers[aiprovider.ProviderPerplexity] = aiprovider.NewPerplexity(key, aiprovider.DefaultPerplexityConfig())
		logger.Info("AI provider configured", slog.String("provider", "perplexity"))
	}

	if len(providers) == 0 {
		logger.Error("no AI provider API keys configured (set at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, PERPLEXITY_API_KEY)")
		os.Exit(1)
	}

	return aiorchestrator.New(providers, 60*time.Second)
}

// loadDiscordConfig loads Discord configuration from environment variables.
//
// Environment variables:
//   - DISCORD_ENABLED: Boolean flag to enable Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: Discord webhook URL (required if enabled)
//
// Returns:
//   - notifier.DiscordConfig: Configuration with validation applied
func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	enabled := os.Getenv("DISCORD_ENABLED") == "true"
	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")

	if !enabled {
		return notifier.DiscordConfig{Enabled: false}
	}

	if webhookURL == "" {
		logger.Warn("Discord webhook URL is empty, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Discord webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Discord webhook URL must use HTTPS, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Host != "discord.com" {
		logger.Warn("Invalid Discord webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.DiscordConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("Invalid Discord webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// loadSlackConfig loads Slack configuration from environment variables.
//
// Environment variables:
//   - SLACK_ENABLED: Boolean flag to enable Slack notifications (default: false)
//   - SLACK_WEBHOOK_URL: Slack webhook URL (required if enabled)
//
// Returns:
//   - notifier.SlackConfig: Configuration with validation applied
func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	enabled := os.Getenv("SLACK_ENABLED") == "true"
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")

	if !enabled {
		return notifier.SlackConfig{Enabled: false}
	}

	if webhookURL == "" {
		logger.Warn("Slack webhook URL is empty, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Slack webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Slack webhook URL must use HTTPS, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Host != "hooks.slack.com" {
		logger.Warn("Invalid Slack webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.SlackConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("Invalid Slack webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.SlackConfig{Enabled: false}
	}

	return notifier.SlackConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// loadNotificationRoutes builds per-channel importance routing from
// environment overrides, falling back to entity.NotificationRoute's default
// cutoff (0.7) when a channel's override is absent or unparseable.
//
// Environment variables:
//   - DISCORD_IMPORTANCE_CUTOFF: minimum Content.ImportanceScore routed to Discord
//   - SLACK_IMPORTANCE_CUTOFF: minimum Content.ImportanceScore routed to Slack
func loadNotificationRoutes(logger *slog.Logger) []entity.NotificationRoute {
	const defaultCutoff = 0.7
	route := func(channel, envVar string) entity.NotificationRoute {
		cutoff := defaultCutoff
		if raw := os.Getenv(envVar); raw != "" {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				cutoff = parsed
			} else {
				logger.Warn("invalid importance cutoff, using default", slog.String("env", envVar), slog.String("value", raw))
			}
		}
		return entity.NotificationRoute{Channel: channel, ImportanceCutoff: cutoff}
	}

	return []entity.NotificationRoute{
		route("discord", "DISCORD_IMPORTANCE_CUTOFF"),
		route("slack", "SLACK_IMPORTANCE_CUTOFF"),
	}
}

// startCronWorker starts the cron scheduler and runs the pipeline job
// periodically, plus an optional daily report job when REPORT_CRON_SCHEDULE
// is set.
func startCronWorker(ctx context.Context, logger *slog.Logger, coordinator *pipeline.Coordinator, reportGenerator *report.Generator, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runPipelineJob(ctx, logger, coordinator, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}

	if reportSchedule := os.Getenv("REPORT_CRON_SCHEDULE"); reportSchedule != "" {
		_, err = c.AddFunc(reportSchedule, func() {
			runDailyReportJob(ctx, logger, reportGenerator)
		})
		if err != nil {
			logger.Error("failed to add report cron job", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("daily report job scheduled", slog.String("schedule", reportSchedule))
	}

	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runDailyReportJob generates and logs a daily intelligence report. The
// report is logged rather than dispatched through the notify channels: its
// envelope (structured JSON, possibly multiple KB) doesn't fit the
// chat-message contract DiscordChannel/SlackChannel implement.
func runDailyReportJob(ctx context.Context, logger *slog.Logger, reportGenerator *report.Generator) {
	r, err := reportGenerator.GenerateDaily(ctx)
	if err != nil {
		logger.Error("daily report generation failed", slog.Any("error", err))
		return
	}
	logger.Info("daily report generated",
		slog.String("report_id", r.ID),
		slog.Int("content_count", r.ContentCount),
		slog.Time("period_start", r.Period.Start),
		slog.Time("period_end", r.Period.End))
}

// runPipelineJob executes a single crawl -> enrich -> notify cycle.
func runPipelineJob(ctx context.Context, logger *slog.Logger, coordinator *pipeline.Coordinator, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("pipeline run started")

	if err := coordinator.Run(ctx); err != nil {
		logger.Error("pipeline run failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordLastSuccess()

	logger.Info("pipeline run completed", slog.Duration("duration", time.Since(startTime)))
}
