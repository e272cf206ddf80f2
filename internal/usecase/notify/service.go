package notify

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"crawlcast/internal/domain/entity"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// Circuit breaker constants
const (
	circuitBreakerThreshold = 5                // Number of consecutive failures before opening
	circuitBreakerTimeout   = 5 * time.Minute  // Duration to keep circuit breaker open
	workerPoolTimeout       = 5 * time.Second  // Timeout for acquiring worker slot
	notificationTimeout     = 30 * time.Second // Timeout for individual notification
)

// Service handles notification dispatching to multiple channels.
// It orchestrates sending notifications asynchronously without blocking
// the caller.
type Service interface {
	// NotifyNewContent dispatches a notification about a newly saved content
	// to all enabled notification channels.
	//
	// This method is non-blocking and returns immediately. Notifications
	// are sent in background goroutines, and failures are logged but do
	// not propagate errors to the caller.
	//
	// Parameters:
	//   - ctx: Context for cancellation (used for logging, not propagated to goroutines)
	//   - content: The content to notify about (must not be nil)
	//   - source: The feed source of the content (must not be nil)
	//
	// Returns:
	//   - nil (always succeeds, errors are handled internally)
	NotifyNewContent(ctx context.Context, content *entity.Content, source *entity.Source) error

	// GetChannelHealth returns the health status of all notification channels.
	//
	// This method provides visibility into circuit breaker states for monitoring
	// and health check endpoints. The returned data is safe for concurrent access.
	//
	// Returns:
	//   - []ChannelHealthStatus: Health status for each channel
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown gracefully stops the notification service, waiting for
	// in-flight notifications to complete or timeout.
	//
	// This method blocks until all goroutines complete or the context timeout.
	//
	// Parameters:
	//   - ctx: Context with timeout for shutdown (recommended: 30s)
	//
	// Returns:
	//   - error: Non-nil if shutdown timeout exceeded
	Shutdown(ctx context.Context) error
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string     // Channel name (e.g., "Discord", "Slack")
	Enabled            bool       // Whether the channel is enabled
	CircuitBreakerOpen bool       // Whether the circuit breaker is currently open
	DisabledUntil      *time.Time // Time until circuit breaker remains open (nil if closed)
}

// Recorder persists an audit trail of dispatch attempts. Implementations may
// write to a table, a metrics backend, or both; Service treats a nil
// Recorder as "don't record" rather than an error.
type Recorder interface {
	RecordNotification(ctx context.Context, rec *entity.NotificationRecord)
}

// service is the concrete implementation of Service interface.
type service struct {
	channels       []Channel                        // Notification channels (Discord, Slack, etc.)
	routes         map[string]entity.NotificationRoute // per-channel importance cutoff, keyed by Channel.Name()
	recorder       Recorder                         // optional dispatch audit trail; nil disables recording
	workerPool     chan struct{}                     // Semaphore for limiting concurrent notifications
	channelHealth  map[string]*channelHealth         // Circuit breaker state per channel
	healthMu       sync.RWMutex                      // Protects channelHealth map
	wg             sync.WaitGroup                    // Track in-flight notifications
	shutdownCtx    context.Context                   // Context for signaling shutdown
	shutdownCancel context.CancelFunc                // Cancel function for shutdown
}

// channelHealth tracks circuit breaker state for a channel
type channelHealth struct {
	consecutiveFailures int        // Number of consecutive failures
	disabledUntil       time.Time  // Time until circuit breaker is open
	mu                  sync.Mutex // Protects this struct's fields
}

// NewService creates a new notification service with the given channels.
//
// routes maps each channel's importance cutoff (see
// entity.NotificationRoute.ImportanceCutoff); a channel with no matching
// route entry is never importance-gated. recorder may be nil, in which case
// dispatch attempts are logged and metered but not persisted.
//
// Parameters:
//   - channels: List of notification channels (Discord, Slack, etc.)
//   - routes: Per-channel importance routing, keyed by Channel.Name()
//   - recorder: Optional dispatch audit sink (nil disables recording)
//   - maxConcurrent: Maximum concurrent notifications (recommended: 10-20)
//
// Returns:
//   - Service: Configured notification service
func NewService(channels []Channel, routes []entity.NotificationRoute, recorder Recorder, maxConcurrent int) Service {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	routeByChannel := make(map[string]entity.NotificationRoute, len(routes))
	for _, r := range routes {
		routeByChannel[r.Channel] = r
	}

	svc := &service{
		channels:       channels,
		routes:         routeByChannel,
		recorder:       recorder,
		workerPool:     make(chan struct{}, maxConcurrent),
		channelHealth:  make(map[string]*channelHealth),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	// Initialize circuit breaker state for each channel
	for _, ch := range channels {
		svc.channelHealth[ch.Name()] = &channelHealth{}
	}

	return svc
}

// NotifyNewContent implements Service.NotifyNewContent.
func (s *service) NotifyNewContent(ctx context.Context, content *entity.Content, source *entity.Source) error {
	// Validate inputs before spawning goroutines
	if content == nil || source == nil {
		slog.Warn("Invalid notification input",
			slog.Bool("nil_content", content == nil),
			slog.Bool("nil_source", source == nil))
		return nil // Don't spawn goroutines for invalid inputs
	}

	// Generate unique request ID for tracing
	// Try to inherit from parent context first
	requestID, ok := ctx.Value("request_id").(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}

	// Count channels that are both enabled and clear the importance cutoff
	// for their route, if one is configured.
	var dispatchable []Channel
	for _, ch := range s.channels {
		if !ch.IsEnabled() {
			continue
		}
		if route, ok := s.routes[ch.Name()]; ok && content.ImportanceScore < route.ImportanceCutoff {
			slog.Debug("content below channel importance cutoff, skipping",
				slog.String("request_id", requestID),
				slog.String("channel", ch.Name()),
				slog.Int64("content_id", content.ID),
				slog.Float64("importance_score", content.ImportanceScore),
				slog.Float64("importance_cutoff", route.ImportanceCutoff))
			continue
		}
		dispatchable = append(dispatchable, ch)
	}

	// Update metrics for enabled channels
	SetChannelsEnabled(float64(len(dispatchable)))

	if len(dispatchable) == 0 {
		slog.Debug("No notification channels enabled for this content",
			slog.String("request_id", requestID),
			slog.Int64("content_id", content.ID))
		return nil
	}

	slog.Info("Dispatching content notification",
		slog.String("request_id", requestID),
		slog.Int64("content_id", content.ID),
		slog.String("url", content.URL),
		slog.Int("dispatchable_channels", len(dispatchable)))

	// Fire goroutine for each dispatchable channel
	for _, ch := range dispatchable {
		channel := ch // Capture for goroutine
		s.wg.Add(1)
		go s.notifyChannel(requestID, channel, content, source)
	}

	return nil
}

// notifyChannel sends notification to a single channel in a goroutine.
func (s *service) notifyChannel(requestID string, channel Channel, content *entity.Content, source *entity.Source) {
	defer s.wg.Done()

	// Track active goroutines
	IncrementActiveGoroutines()
	defer DecrementActiveGoroutines()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in notification channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	// Acquire worker slot (with timeout to prevent blocking)
	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }() // Release slot
	case <-time.After(workerPoolTimeout):
		slog.Warn("Notification dropped: worker pool full",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()))
		RecordDropped(channel.Name(), "pool_full")
		return
	}

	// Check circuit breaker
	health := s.getChannelHealth(channel.Name())
	health.mu.Lock()
	if time.Now().Before(health.disabledUntil) {
		slog.Warn("Channel temporarily disabled due to circuit breaker",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.Time("disabled_until", health.disabledUntil))
		health.mu.Unlock()
		RecordDropped(channel.Name(), "circuit_open")
		return
	}
	health.mu.Unlock()

	// Create context with timeout (use shutdown context instead of Background)
	ctx, cancel := context.WithTimeout(s.shutdownCtx, notificationTimeout)
	defer cancel()

	// Add request_id to context for tracing
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	// Record start time for metrics
	startTime := time.Now()
	RecordDispatch(channel.Name())

	// Send notification
	err := channel.Send(ctx, content, source)
	duration := time.Since(startTime)

	// Update circuit breaker state
	health.mu.Lock()
	if err != nil {
		health.consecutiveFailures++
		if health.consecutiveFailures >= circuitBreakerThreshold {
			health.disabledUntil = time.Now().Add(circuitBreakerTimeout)
			slog.Error("Circuit breaker opened for channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Int("consecutive_failures", health.consecutiveFailures))
			RecordCircuitBreakerOpen(channel.Name())
		}
	} else {
		health.consecutiveFailures = 0 // Reset on success
	}
	health.mu.Unlock()

	// Record metrics and log result
	if err != nil {
		RecordFailure(channel.Name(), duration)
		slog.Warn("Channel notification failed",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.Int64("content_id", content.ID),
			slog.String("url", content.URL),
			slog.Duration("send_duration", duration),
			slog.Any("error", err))
	} else {
		RecordSuccess(channel.Name(), duration)
		slog.Info("Channel notification sent successfully",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.Int64("content_id", content.ID),
			slog.String("title", content.Title),
			slog.Duration("send_duration", duration))
	}

	if s.recorder != nil {
		rec := &entity.NotificationRecord{
			ContentID: content.ID,
			RouteID:   s.routes[channel.Name()].ID,
			Channel:   channel.Name(),
			Success:   err == nil,
			SentAt:    startTime,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		s.recorder.RecordNotification(ctx, rec)
	}
}

// getChannelHealth returns circuit breaker state for a channel
func (s *service) getChannelHealth(channelName string) *channelHealth {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.channelHealth[channelName]
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	statuses := make([]ChannelHealthStatus, 0, len(s.channels))

	for _, ch := range s.channels {
		health := s.channelHealth[ch.Name()]

		// Lock individual channel health for consistent read
		health.mu.Lock()

		var disabledUntil *time.Time
		circuitBreakerOpen := false

		// Check if circuit breaker is currently open
		if time.Now().Before(health.disabledUntil) {
			circuitBreakerOpen = true
			disabledUntil = &health.disabledUntil
		}

		health.mu.Unlock()

		statuses = append(statuses, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: circuitBreakerOpen,
			DisabledUntil:      disabledUntil,
		})
	}

	return statuses
}

// Shutdown implements Service.Shutdown.
func (s *service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down notification service")

	// Signal all goroutines to stop
	s.shutdownCancel()

	// Wait for in-flight notifications with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		slog.Warn("Notification service shutdown timeout")
		return ctx.Err()
	}
}
