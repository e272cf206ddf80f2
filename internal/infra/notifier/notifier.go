// Package notifier provides abstraction for sending notifications about contents.
// It defines the Notifier interface which allows different notification mechanisms
// (Discord, Slack, email, etc.) to be used interchangeably through dependency injection.
//
// The package includes implementations for Discord webhooks and a no-op notifier
// for when notifications are disabled.
package notifier

import (
	"context"

	"crawlcast/internal/domain/entity"
)

// Notifier is an interface for sending content notifications.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyContent sends a notification about a newly fetched and summarized content.
	// The notification should include content metadata (title, URL, summary) and source information.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - content: The content to notify about (must not be nil)
	//   - source: The feed source of the content (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the notification failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures after a backoff delay
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyContent(ctx context.Context, content *entity.Content, source *entity.Source) error
}
