// Package pipeline runs the crawl -> enrich -> notify cycle for every
// active Source, bounding concurrency per-source and globally, and
// recording a JobExecution for each source it touches.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/parser"
	"crawlcast/internal/repository"
	"crawlcast/internal/usecase/crawl"
	"crawlcast/internal/usecase/enrich"

	"golang.org/x/sync/errgroup"
)

// enrichBatchSize bounds how many new-status contents a single run enriches.
const enrichBatchSize = 100

// notifyBatchSize bounds how many processed-status contents a single run
// dispatches to notification channels.
const notifyBatchSize = 50

// notifyImportanceThreshold is the ImportanceScore a content must clear to
// be considered for notification.
const notifyImportanceThreshold = 0.7

// archiveRetentionDays is how long a notified content stays in the active
// store before a run archives it.
const archiveRetentionDays = 30

// archiveBatchSize bounds how many notified-status contents a single run
// archives.
const archiveBatchSize = 200

// Crawler fetches and parses a single Source.
type Crawler interface {
	Crawl(ctx context.Context, src *entity.Source) (crawl.Result, error)
}

// Enricher runs AI analysis over a single Content, never failing -- it
// always returns a usable result.
type Enricher interface {
	Process(ctx context.Context, c *entity.Content) enrich.Result
}

// KeywordMatcher tags a Content's text against configured keyword groups.
type KeywordMatcher interface {
	Match(ctx context.Context, text string) ([]entity.MatchResult, error)
}

// Notifier dispatches a content's notification, fire-and-forget.
type Notifier interface {
	NotifyNewContent(ctx context.Context, content *entity.Content, source *entity.Source) error
}

// Embedder generates a vector embedding for newly saved content in the
// background, for later similarity search. It must not block the caller.
type Embedder interface {
	EmbedContentAsync(ctx context.Context, content *entity.Content)
}

// Config bounds the coordinator's concurrency and scheduling behavior,
// sourced from worker.WorkerConfig's coordinator fields.
type Config struct {
	WorkerPoolSize       int
	CrawlIntervalMinutes int
	HardTimeout          time.Duration
	SoftTimeout          time.Duration
}

// Coordinator runs the crawl -> enrich -> notify pipeline across all
// active sources on each invocation of Run.
type Coordinator struct {
	sourceRepo  repository.SourceRepository
	contentRepo repository.ContentRepository
	jobRepo     repository.JobExecutionRepository

	crawler  Crawler
	enricher Enricher
	matcher  KeywordMatcher // nil disables keyword tagging
	notifier Notifier
	embedder Embedder // nil disables embedding generation

	cfg Config

	// running tracks sources currently being crawled, enforcing
	// per-source concurrency=1 across overlapping invocations of Run.
	running sync.Map
}

// New creates a Coordinator. matcher and embedder may be nil to disable
// keyword tagging and embedding generation respectively.
func New(
	sourceRepo repository.SourceRepository,
	contentRepo repository.ContentRepository,
	jobRepo repository.JobExecutionRepository,
	crawler Crawler,
	enricher Enricher,
	matcher KeywordMatcher,
	notifier Notifier,
	embedder Embedder,
	cfg Config,
) *Coordinator {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.CrawlIntervalMinutes <= 0 {
		cfg.CrawlIntervalMinutes = 60
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = 10 * time.Minute
	}
	if cfg.SoftTimeout <= 0 || cfg.SoftTimeout >= cfg.HardTimeout {
		cfg.SoftTimeout = 9 * time.Minute
	}
	return &Coordinator{
		sourceRepo:  sourceRepo,
		contentRepo: contentRepo,
		jobRepo:     jobRepo,
		crawler:     crawler,
		enricher:    enricher,
		matcher:     matcher,
		notifier:    notifier,
		embedder:    embedder,
		cfg:         cfg,
	}
}

// Run executes one full crawl -> enrich -> notify cycle, bounded by the
// configured hard timeout. It always returns nil: individual
// source/content failures are logged and recorded on the relevant
// JobExecution/Source/Content rows, and a stage whose initial listing
// fails is logged and skipped.
func (co *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, co.cfg.HardTimeout)
	defer cancel()

	var softStop atomic.Bool
	softTimer := time.AfterFunc(co.cfg.SoftTimeout, func() {
		softStop.Store(true)
		slog.Warn("pipeline run hit soft timeout, draining in-flight work", slog.Duration("soft_timeout", co.cfg.SoftTimeout))
	})
	defer softTimer.Stop()

	co.crawlStage(ctx, &softStop)
	co.enrichStage(ctx, &softStop)
	co.notifyStage(ctx, &softStop)
	co.archiveStage(ctx, &softStop)

	return nil
}

// crawlStage crawls every active, due source, bounded by a worker pool of
// cfg.WorkerPoolSize and skipping any source already being crawled by an
// overlapping run.
func (co *Coordinator) crawlStage(ctx context.Context, softStop *atomic.Bool) {
	sources, err := co.sourceRepo.ListActive(ctx)
	if err != nil {
		slog.Error("crawl stage: list active sources failed", slog.Any("error", err))
		return
	}

	sem := make(chan struct{}, co.cfg.WorkerPoolSize)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, src := range sources {
		s := src

		if softStop.Load() {
			slog.Warn("crawl stage: soft timeout reached, not scheduling further sources", slog.Int64("source_id", s.ID))
			break
		}
		if !co.dueForCrawl(s) {
			continue
		}
		if _, already := co.running.LoadOrStore(s.ID, true); already {
			slog.Warn("crawl stage: source already crawling, dropping trigger", slog.Int64("source_id", s.ID))
			continue
		}

		eg.Go(func() error {
			defer co.running.Delete(s.ID)

			sem <- struct{}{}
			defer func() { <-sem }()

			co.runSource(egCtx, s)
			return nil
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("crawl stage: unexpected error", slog.Any("error", err))
	}
}

// dueForCrawl reports whether enough time has passed since src's last
// crawl to schedule another one.
func (co *Coordinator) dueForCrawl(src *entity.Source) bool {
	if src.LastCrawledAt == nil {
		return true
	}
	interval := time.Duration(co.cfg.CrawlIntervalMinutes) * time.Minute
	return time.Since(*src.LastCrawledAt) >= interval
}

// runSource crawls one source end to end: opens a JobExecution, crawls,
// persists any healed config and new content, records success/failure on
// the Source, and closes the JobExecution with final counters.
func (co *Coordinator) runSource(ctx context.Context, src *entity.Source) {
	job := &entity.JobExecution{
		SourceID:  src.ID,
		State:     entity.JobStateCrawling,
		StartedAt: time.Now(),
	}
	if err := co.jobRepo.Create(ctx, job); err != nil {
		slog.Error("runSource: create job execution failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	result, err := co.crawlWithRetry(ctx, src, job)
	if err != nil {
		co.finishFailed(ctx, src, job, err)
		return
	}

	if result.HealedConfig != nil {
		src.Config = result.HealedConfig
		src.ConfigVersion++
		src.AIHealedConfig = true
		if err := co.sourceRepo.Update(ctx, src); err != nil {
			slog.Error("runSource: persist healed config failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
		}
	}

	job.ItemsFound = len(result.Items)
	itemsNew := 0
	for _, item := range result.Items {
		inserted, err := co.saveItem(ctx, src, item)
		if err != nil {
			slog.Warn("runSource: save item failed", slog.Int64("source_id", src.ID), slog.String("url", item.URL), slog.Any("error", err))
			continue
		}
		if inserted {
			itemsNew++
		}
	}
	job.ItemsNew = itemsNew

	now := time.Now()
	src.RecordSuccess(now)
	if err := co.sourceRepo.Update(ctx, src); err != nil {
		slog.Error("runSource: record success failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	// TouchCrawledAt must land even if the run's outer context is
	// cancelled mid-drain by the soft/hard timeout.
	safeCtx := context.WithoutCancel(ctx)
	if err := co.sourceRepo.TouchCrawledAt(safeCtx, src.ID, now); err != nil {
		slog.Error("runSource: touch crawled at failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	job.MarkFinished(now)
	if err := co.jobRepo.Update(ctx, job); err != nil {
		slog.Error("runSource: update job execution failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	slog.Info("runSource completed", slog.Int64("source_id", src.ID), slog.Int("items_found", job.ItemsFound), slog.Int("items_new", job.ItemsNew))
}

// crawlWithRetry calls the crawler, retrying transient failures up to
// entity.JobMaxRetries times with a fixed entity.JobRetryDelay between
// attempts, mirroring the Celery task retry policy this pipeline
// replaces. job.RetryCount tracks the attempt count for the caller to
// persist alongside the final outcome.
func (co *Coordinator) crawlWithRetry(ctx context.Context, src *entity.Source, job *entity.JobExecution) (crawl.Result, error) {
	var lastErr error
	for job.RetryCount = 0; job.RetryCount <= entity.JobMaxRetries; job.RetryCount++ {
		if job.RetryCount > 0 {
			select {
			case <-ctx.Done():
				return crawl.Result{}, ctx.Err()
			case <-time.After(entity.JobRetryDelay):
			}
		}

		result, err := co.crawler.Crawl(ctx, src)
		if err == nil {
			return result, nil
		}
		lastErr = err
		slog.Warn("crawlWithRetry: attempt failed", slog.Int64("source_id", src.ID), slog.Int("attempt", job.RetryCount+1), slog.Any("error", err))
	}
	return crawl.Result{}, lastErr
}

// finishFailed records a crawl failure onto the Source and JobExecution.
func (co *Coordinator) finishFailed(ctx context.Context, src *entity.Source, job *entity.JobExecution, crawlErr error) {
	src.RecordFailure(crawlErr)
	if err := co.sourceRepo.Update(ctx, src); err != nil {
		slog.Error("finishFailed: record failure failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	job.MarkFailed(crawlErr)
	finishedAt := time.Now()
	job.FinishedAt = &finishedAt
	if err := co.jobRepo.Update(ctx, job); err != nil {
		slog.Error("finishFailed: update job execution failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
	}

	slog.Warn("runSource crawl failed", slog.Int64("source_id", src.ID), slog.Int("error_count", src.ErrorCount), slog.Any("error", crawlErr))
}

// saveItem builds a Content from a crawled item, tags it with matched
// keywords, and upserts it by content hash.
func (co *Coordinator) saveItem(ctx context.Context, src *entity.Source, item parser.Item) (inserted bool, err error) {
	c := &entity.Content{
		SourceID:    src.ID,
		Title:       item.Title,
		URL:         item.URL,
		Body:        item.Body,
		ContentHash: contentHash(item.URL, item.Title, item.Body),
		PublishedAt: item.PublishedAt,
		CreatedAt:   time.Now(),
		Status:      entity.ContentStatusNew,
	}

	if co.matcher != nil {
		matches, matchErr := co.matcher.Match(ctx, c.Title+"\n\n"+c.Body)
		if matchErr != nil {
			slog.Warn("saveItem: keyword match failed", slog.String("url", item.URL), slog.Any("error", matchErr))
		} else {
			c.MatchedKeywords = matches
		}
	}

	inserted, err = co.contentRepo.UpsertIfNew(ctx, c)
	if err != nil {
		return inserted, err
	}
	if inserted && co.embedder != nil {
		co.embedder.EmbedContentAsync(ctx, c)
	}
	return inserted, nil
}

// contentHash is sha256(url|title|body) hex-encoded, the sole dedup key.
func contentHash(url, title, body string) string {
	sum := sha256.Sum256([]byte(url + "|" + title + "|" + body))
	return hex.EncodeToString(sum[:])
}

// enrichStage runs AI analysis over up to enrichBatchSize new contents,
// bounded by a worker pool of cfg.WorkerPoolSize.
func (co *Coordinator) enrichStage(ctx context.Context, softStop *atomic.Bool) {
	if softStop.Load() {
		slog.Warn("enrich stage: skipped, soft timeout already reached")
		return
	}

	contents, err := co.contentRepo.ListByStatus(ctx, entity.ContentStatusNew, enrichBatchSize)
	if err != nil {
		slog.Error("enrich stage: list new contents failed", slog.Any("error", err))
		return
	}

	sem := make(chan struct{}, co.cfg.WorkerPoolSize)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, content := range contents {
		c := content

		if softStop.Load() {
			slog.Warn("enrich stage: soft timeout reached, stopping early")
			break
		}

		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			co.enrichOne(egCtx, c)
			return nil
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("enrich stage: unexpected error", slog.Any("error", err))
	}
}

func (co *Coordinator) enrichOne(ctx context.Context, c *entity.Content) {
	result := co.enricher.Process(ctx, c)

	c.Summary = &result.Summary
	c.Categories = result.Categories
	c.Entities = result.Entities
	c.Sentiment = result.Sentiment
	c.RelevanceScore = result.RelevanceScore
	c.ImportanceScore = result.ImportanceScore
	c.KeyTopics = result.KeyTopics
	c.Status = entity.ContentStatusProcessed

	if err := co.contentRepo.Update(ctx, c); err != nil {
		slog.Error("enrichOne: update content failed", slog.Int64("content_id", c.ID), slog.Any("error", err))
	}
}

// notifyStage dispatches up to notifyBatchSize processed contents whose
// ImportanceScore clears notifyImportanceThreshold.
func (co *Coordinator) notifyStage(ctx context.Context, softStop *atomic.Bool) {
	if softStop.Load() {
		slog.Warn("notify stage: skipped, soft timeout already reached")
		return
	}

	contents, err := co.contentRepo.ListByStatusAndMinImportance(ctx, entity.ContentStatusProcessed, notifyImportanceThreshold, notifyBatchSize)
	if err != nil {
		slog.Error("notify stage: list processed contents failed", slog.Any("error", err))
		return
	}

	sources := make(map[int64]*entity.Source)
	for _, content := range contents {
		if softStop.Load() {
			slog.Warn("notify stage: soft timeout reached, stopping early")
			break
		}

		src, ok := sources[content.SourceID]
		if !ok {
			src, err = co.sourceRepo.Get(ctx, content.SourceID)
			if err != nil {
				slog.Warn("notify stage: load source failed", slog.Int64("source_id", content.SourceID), slog.Any("error", err))
				continue
			}
			sources[content.SourceID] = src
		}

		if err := co.notifier.NotifyNewContent(ctx, content, src); err != nil {
			slog.Warn("notify stage: notify failed", slog.Int64("content_id", content.ID), slog.Any("error", err))
			continue
		}

		content.Status = entity.ContentStatusNotified
		if err := co.contentRepo.Update(ctx, content); err != nil {
			slog.Error("notify stage: update content status failed", slog.Int64("content_id", content.ID), slog.Any("error", err))
		}
	}
}

// archiveStage moves notified contents older than archiveRetentionDays to
// the terminal archived status, the last step of the content lifecycle.
func (co *Coordinator) archiveStage(ctx context.Context, softStop *atomic.Bool) {
	if softStop.Load() {
		slog.Warn("archive stage: skipped, soft timeout already reached")
		return
	}

	cutoff := time.Now().Add(-archiveRetentionDays * 24 * time.Hour)
	n, err := co.contentRepo.ArchiveNotifiedBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		slog.Error("archive stage: archive notified contents failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		slog.Info("archive stage: archived notified contents", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	}
}
