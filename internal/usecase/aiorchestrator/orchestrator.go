// Package aiorchestrator routes AI completion requests to the provider best
// suited to the task at hand, falling back through an ordered provider list
// when the preferred backend fails, and supports fan-out/pipeline requests
// across multiple providers.
package aiorchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"crawlcast/internal/infra/aiprovider"
)

// TaskKind identifies the kind of work a prompt performs, used to pick the
// ordered provider fallback list.
type TaskKind string

const (
	TaskSearch     TaskKind = "search"
	TaskSummarize  TaskKind = "summarize"
	TaskAnalyze    TaskKind = "analyze"
	TaskClassify   TaskKind = "classify"
	TaskExtract    TaskKind = "extract"
	TaskCodeGen    TaskKind = "code-gen"
	TaskMultimodal TaskKind = "multimodal"
)

// taskProviderMap is the optimal-provider-per-task routing table. Order
// matters: Request tries each entry in sequence until one succeeds.
var taskProviderMap = map[TaskKind][]aiprovider.ProviderID{
	TaskSearch:     {aiprovider.ProviderPerplexity, aiprovider.ProviderOpenAI},
	TaskSummarize:  {aiprovider.ProviderOpenAI, aiprovider.ProviderAnthropic, aiprovider.ProviderGoogle},
	TaskAnalyze:    {aiprovider.ProviderAnthropic, aiprovider.ProviderOpenAI, aiprovider.ProviderGoogle},
	TaskClassify:   {aiprovider.ProviderOpenAI, aiprovider.ProviderAnthropic, aiprovider.ProviderGoogle},
	TaskExtract:    {aiprovider.ProviderAnthropic, aiprovider.ProviderOpenAI, aiprovider.ProviderGoogle},
	TaskCodeGen:    {aiprovider.ProviderAnthropic, aiprovider.ProviderOpenAI},
	TaskMultimodal: {aiprovider.ProviderGoogle, aiprovider.ProviderOpenAI},
}

// Response is the result of a single provider completion.
type Response struct {
	Content  string
	Provider aiprovider.ProviderID
}

// PipelineStep is one stage of a Collaborate run: the task kind to route on,
// and a prompt template containing "{previous_response}" which is replaced
// with the prior stage's output (the initial prompt, for the first stage).
type PipelineStep struct {
	Task           TaskKind
	PromptTemplate string
}

// Orchestrator routes completion requests across the four registered
// provider clients.
type Orchestrator struct {
	providers map[aiprovider.ProviderID]aiprovider.Provider
	timeout   time.Duration
}

// New creates an Orchestrator from the given set of available providers.
// Providers whose API keys were not configured should simply be omitted
// from the map; Request/RequestParallel transparently skip what's absent.
func New(providers map[aiprovider.ProviderID]aiprovider.Provider, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{providers: providers, timeout: timeout}
}

// providersForTask returns the subset (in preference order) of the task's
// routing list that is actually available.
func (o *Orchestrator) providersForTask(task TaskKind) []aiprovider.Provider {
	preferred, ok := taskProviderMap[task]
	if !ok {
		preferred = []aiprovider.ProviderID{
			aiprovider.ProviderOpenAI, aiprovider.ProviderAnthropic,
			aiprovider.ProviderGoogle, aiprovider.ProviderPerplexity,
		}
	}

	var result []aiprovider.Provider
	for _, id := range preferred {
		if p, ok := o.providers[id]; ok {
			result = append(result, p)
		}
	}
	return result
}

// Request sends prompt to the best available provider for task, falling
// back through the task's provider list on failure or timeout. When
// preferredProvider is non-empty and registered, it is used exclusively --
// no fallback to the task's routing list -- matching step 1 of the
// original orchestrator's selection algorithm. Pass "" for the default
// task-routed behavior.
func (o *Orchestrator) Request(ctx context.Context, prompt string, task TaskKind, preferredProvider aiprovider.ProviderID) (Response, error) {
	var providers []aiprovider.Provider
	if preferredProvider != "" {
		if p, ok := o.providers[preferredProvider]; ok {
			providers = []aiprovider.Provider{p}
		} else {
			return Response{}, fmt.Errorf("preferred AI provider %q is not available", preferredProvider)
		}
	} else {
		providers = o.providersForTask(task)
	}
	if len(providers) == 0 {
		return Response{}, fmt.Errorf("no AI providers available for task %q", task)
	}

	var lastErr error
	for _, p := range providers {
		reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
		slog.Info("ai orchestrator request start", slog.String("provider", string(p.ID())), slog.String("task", string(task)))

		content, err := p.Complete(reqCtx, prompt)
		cancel()

		if err == nil {
			slog.Info("ai orchestrator request success", slog.String("provider", string(p.ID())), slog.String("task", string(task)))
			return Response{Content: content, Provider: p.ID()}, nil
		}

		slog.Warn("ai orchestrator request failed, trying next provider",
			slog.String("provider", string(p.ID())), slog.String("task", string(task)), slog.Any("error", err))
		lastErr = err
	}

	return Response{}, fmt.Errorf("all AI providers failed for task %q: %w", task, lastErr)
}

// RequestParallel sends prompt to every available provider concurrently and
// returns whichever responses succeeded; per-provider failures are logged
// and dropped. When every provider fails, the result is empty and the
// error is nil; an error is returned only when no provider is available.
func (o *Orchestrator) RequestParallel(ctx context.Context, prompt string, providerIDs []aiprovider.ProviderID) ([]Response, error) {
	var providers []aiprovider.Provider
	if len(providerIDs) == 0 {
		for _, p := range o.providers {
			providers = append(providers, p)
		}
	} else {
		for _, id := range providerIDs {
			if p, ok := o.providers[id]; ok {
				providers = append(providers, p)
			}
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no AI providers available")
	}

	responses := make([]Response, len(providers))
	ok := make([]bool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			content, err := p.Complete(reqCtx, prompt)
			if err != nil {
				slog.Warn("parallel ai request failed", slog.String("provider", string(p.ID())), slog.Any("error", err))
				return nil
			}
			responses[i] = Response{Content: content, Provider: p.ID()}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var results []Response
	for i, succeeded := range ok {
		if succeeded {
			results = append(results, responses[i])
		}
	}

	return results, nil
}

// Collaborate runs a pipeline of steps where each step's output feeds the
// next step's prompt template via "{previous_response}".
func (o *Orchestrator) Collaborate(ctx context.Context, initialPrompt string, steps []PipelineStep) ([]Response, error) {
	var responses []Response
	current := initialPrompt

	for _, step := range steps {
		prompt := strings.ReplaceAll(step.PromptTemplate, previousResponsePlaceholder, current)

		resp, err := o.Request(ctx, prompt, step.Task, "")
		if err != nil {
			return responses, fmt.Errorf("collaborate step %q failed: %w", step.Task, err)
		}

		responses = append(responses, resp)
		current = resp.Content
	}

	return responses, nil
}

const previousResponsePlaceholder = "{previous_response}"
