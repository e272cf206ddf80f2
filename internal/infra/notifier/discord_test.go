package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crawlcast/internal/domain/entity"
)

// TASK-014: Discord Embed Payload Builder Unit Tests

func TestDiscordNotifier_buildEmbedPayload(t *testing.T) {
	t.Run("TC-1: should build valid embed with all fields", func(t *testing.T) {
		// Arrange
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    10 * time.Second,
		})

		publishedAt := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
		content := &entity.Content{
			ID:          1,
			SourceID:    1,
			Title:       "Test Content Title",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("This is a test content summary with some content."),
			PublishedAt: publishedAt,
			CreatedAt:   time.Now(),
		}

		source := &entity.Source{
			ID:      1,
			Name:    "Test Source",
			URL:     "https://example.com/feed",
			Active:  true,
		}

		// Act
		payload := notifier.buildEmbedPayload(content, source)

		// Assert
		if len(payload.Embeds) != 1 {
			t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
		}

		embed := payload.Embeds[0]
		if embed.Title != content.Title {
			t.Errorf("expected title=%q, got %q", content.Title, embed.Title)
		}
		var summary string
		if content.Summary != nil {
			summary = *content.Summary
		}
		if embed.Description != summary {
			t.Errorf("expected description=%q, got %q", summary, embed.Description)
		}
		if embed.URL != content.URL {
			t.Errorf("expected url=%q, got %q", content.URL, embed.URL)
		}
		if embed.Color != discordBlueColor {
			t.Errorf("expected color=%d, got %d", discordBlueColor, embed.Color)
		}
		if embed.Footer.Text != source.Name {
			t.Errorf("expected footer=%q, got %q", source.Name, embed.Footer.Text)
		}

		expectedTimestamp := publishedAt.Format(time.RFC3339)
		if embed.Timestamp != expectedTimestamp {
			t.Errorf("expected timestamp=%q, got %q", expectedTimestamp, embed.Timestamp)
		}
	})

	t.Run("TC-2: should truncate long summary (>4096 chars) with ...", func(t *testing.T) {
		// Arrange
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    10 * time.Second,
		})

		longSummary := strings.Repeat("a", 5000) // 5000 characters
		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr(longSummary),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		payload := notifier.buildEmbedPayload(content, source)

		// Assert
		embed := payload.Embeds[0]
		if len(embed.Description) > maxDescriptionLength {
			t.Errorf("expected description length <= %d, got %d", maxDescriptionLength, len(embed.Description))
		}
		if !strings.HasSuffix(embed.Description, truncationSuffix) {
			t.Errorf("expected description to end with %q, got %q", truncationSuffix, embed.Description[len(embed.Description)-10:])
		}

		// Should be exactly 4096 characters (4093 + "...")
		expectedLength := maxDescriptionLength
		if len(embed.Description) != expectedLength {
			t.Errorf("expected description length=%d, got %d", expectedLength, len(embed.Description))
		}
	})

	t.Run("TC-3: should truncate long title (>256 chars)", func(t *testing.T) {
		// Arrange
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    10 * time.Second,
		})

		longTitle := strings.Repeat("x", 300) // 300 characters
		content := &entity.Content{
			ID:          1,
			Title:       longTitle,
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		payload := notifier.buildEmbedPayload(content, source)

		// Assert
		embed := payload.Embeds[0]
		if len(embed.Title) != maxTitleLength {
			t.Errorf("expected title length=%d, got %d", maxTitleLength, len(embed.Title))
		}
		if embed.Title != longTitle[:maxTitleLength] {
			t.Errorf("expected title to be truncated to first %d chars", maxTitleLength)
		}
	})

	t.Run("TC-4: should handle empty summary", func(t *testing.T) {
		// Arrange
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr(""), // Empty summary
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		payload := notifier.buildEmbedPayload(content, source)

		// Assert
		embed := payload.Embeds[0]
		if embed.Description != "" {
			t.Errorf("expected empty description, got %q", embed.Description)
		}
	})

	t.Run("TC-5: should format timestamp as RFC3339", func(t *testing.T) {
		// Arrange
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    10 * time.Second,
		})

		publishedAt := time.Date(2025, 11, 15, 12, 30, 45, 0, time.UTC)
		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: publishedAt,
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		payload := notifier.buildEmbedPayload(content, source)

		// Assert
		embed := payload.Embeds[0]
		expectedTimestamp := "2025-11-15T12:30:45Z"
		if embed.Timestamp != expectedTimestamp {
			t.Errorf("expected timestamp=%q, got %q", expectedTimestamp, embed.Timestamp)
		}

		// Verify it's valid RFC3339
		_, err := time.Parse(time.RFC3339, embed.Timestamp)
		if err != nil {
			t.Errorf("timestamp is not valid RFC3339: %v", err)
		}
	})
}

func TestTruncateSummary(t *testing.T) {
	t.Run("should not truncate short summary", func(t *testing.T) {
		summary := "Short summary"
		result := truncateSummary(summary, 100, "...")
		if result != summary {
			t.Errorf("expected %q, got %q", summary, result)
		}
	})

	t.Run("should truncate long summary with ellipsis", func(t *testing.T) {
		summary := strings.Repeat("a", 100)
		result := truncateSummary(summary, 50, "...")

		if len(result) != 50 {
			t.Errorf("expected length=50, got %d", len(result))
		}
		if !strings.HasSuffix(result, "...") {
			t.Errorf("expected result to end with '...', got %q", result[len(result)-3:])
		}
		if result != summary[:47]+"..." {
			t.Errorf("expected first 47 chars + '...', got different result")
		}
	})

	t.Run("should handle edge case with maxLength=3", func(t *testing.T) {
		summary := "abcdef"
		result := truncateSummary(summary, 3, "...")

		if result != "..." {
			t.Errorf("expected '...', got %q", result)
		}
	})
}

// TASK-015: Discord HTTP Request Logic Unit Tests

func TestDiscordNotifier_sendWebhookRequest(t *testing.T) {
	t.Run("TC-1: should succeed with 200 OK response", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Verify request headers
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type=application/json, got %q", r.Header.Get("Content-Type"))
			}

			// Verify request body
			body, _ := io.ReadAll(r.Body)
			var payload DiscordWebhookPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("failed to parse request body: %v", err)
			}

			// Send success response
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		err := notifier.sendWebhookRequest(context.Background(), content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should handle 429 rate limit with retry_after", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			errorResp := DiscordErrorResponse{
				Message:    "You are being rate limited.",
				Code:       429,
				RetryAfter: 2.5, // 2.5 seconds
			}
			_ = json.NewEncoder(w).Encode(errorResp)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		err := notifier.sendWebhookRequest(context.Background(), content, source)

		// Assert
		if err == nil {
			t.Fatal("expected rate limit error, got nil")
		}

		rateLimitErr, ok := err.(*RateLimitError)
		if !ok {
			t.Fatalf("expected RateLimitError, got %T", err)
		}

		expectedRetryAfter := 2500 * time.Millisecond
		if rateLimitErr.RetryAfter != expectedRetryAfter {
			t.Errorf("expected retry_after=%v, got %v", expectedRetryAfter, rateLimitErr.RetryAfter)
		}
	})

	t.Run("TC-3: should return ClientError for 4xx (non-retryable)", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message": "Invalid webhook token"}`))
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		err := notifier.sendWebhookRequest(context.Background(), content, source)

		// Assert
		if err == nil {
			t.Fatal("expected client error, got nil")
		}

		clientErr, ok := err.(*ClientError)
		if !ok {
			t.Fatalf("expected ClientError, got %T", err)
		}

		if clientErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status code=%d, got %d", http.StatusBadRequest, clientErr.StatusCode)
		}

		// Verify it's not retryable
		if isRetryableError(err) {
			t.Error("expected client error to be non-retryable")
		}
	})

	t.Run("TC-4: should return ServerError for 5xx (retryable)", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message": "Internal server error"}`))
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		err := notifier.sendWebhookRequest(context.Background(), content, source)

		// Assert
		if err == nil {
			t.Fatal("expected server error, got nil")
		}

		serverErr, ok := err.(*ServerError)
		if !ok {
			t.Fatalf("expected ServerError, got %T", err)
		}

		if serverErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status code=%d, got %d", http.StatusInternalServerError, serverErr.StatusCode)
		}

		// Verify it's retryable
		if !isRetryableError(err) {
			t.Error("expected server error to be retryable")
		}
	})

	t.Run("TC-5: should handle network timeout", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Simulate slow response
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    50 * time.Millisecond, // Short timeout to trigger timeout
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Act
		err := notifier.sendWebhookRequest(context.Background(), content, source)

		// Assert
		if err == nil {
			t.Fatal("expected timeout error, got nil")
		}

		// Network errors should be retryable
		if !isRetryableError(err) {
			t.Error("expected network timeout to be retryable")
		}
	})
}

func TestExtractRetryAfter(t *testing.T) {
	t.Run("should extract retry_after from JSON body", func(t *testing.T) {
		// Arrange
		errorResp := DiscordErrorResponse{
			Message:    "Rate limited",
			RetryAfter: 3.5,
		}
		body, _ := json.Marshal(errorResp)
		resp := &http.Response{
			Header: http.Header{},
		}

		// Act
		retryAfter := extractRetryAfter(resp, body)

		// Assert
		expected := 3500 * time.Millisecond
		if retryAfter != expected {
			t.Errorf("expected %v, got %v", expected, retryAfter)
		}
	})

	t.Run("should fall back to Retry-After header", func(t *testing.T) {
		// Arrange
		resp := &http.Response{
			Header: http.Header{
				"Retry-After": []string{"10"},
			},
		}
		body := []byte(`{}`)

		// Act
		retryAfter := extractRetryAfter(resp, body)

		// Assert
		expected := 10 * time.Second
		if retryAfter != expected {
			t.Errorf("expected %v, got %v", expected, retryAfter)
		}
	})

	t.Run("should return default 5s when no retry_after info", func(t *testing.T) {
		// Arrange
		resp := &http.Response{
			Header: http.Header{},
		}
		body := []byte(`{}`)

		// Act
		retryAfter := extractRetryAfter(resp, body)

		// Assert
		expected := 5 * time.Second
		if retryAfter != expected {
			t.Errorf("expected %v, got %v", expected, retryAfter)
		}
	})
}

// TASK-016: Retry Logic Unit Tests

func TestDiscordNotifier_sendWebhookRequestWithRetry(t *testing.T) {
	t.Run("TC-1: should succeed on first attempt (no retry)", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-1")

		// Act
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request, got %d", requestCount)
		}
	})

	t.Run("TC-2: should succeed on second attempt (after 1 retry)", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				// First request fails with 5xx
				w.WriteHeader(http.StatusInternalServerError)
			} else {
				// Second request succeeds
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-2")

		// Act
		start := time.Now()
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)
		elapsed := time.Since(start)

		// Assert
		if err != nil {
			t.Errorf("expected no error after retry, got %v", err)
		}

		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests, got %d", requestCount)
		}

		// Should wait ~5s between retries
		if elapsed < 4*time.Second || elapsed > 6*time.Second {
			t.Logf("warning: expected ~5s delay, got %v (this might be flaky in slow environments)", elapsed)
		}
	})

	t.Run("TC-3: should fail after max retries (2 attempts)", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			// Always fail with 5xx
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-3")

		// Act
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)

		// Assert
		if err == nil {
			t.Fatal("expected error after max retries, got nil")
		}

		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests (max attempts), got %d", requestCount)
		}

		if !strings.Contains(err.Error(), "failed after 2 attempts") {
			t.Errorf("expected error message to mention 2 attempts, got %v", err)
		}
	})

	t.Run("TC-4: should respect retry_after for 429 errors", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				// First request returns 429 with retry_after
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(DiscordErrorResponse{
					Message:    "Rate limited",
					RetryAfter: 1.0, // 1 second
				})
			} else {
				// Second request succeeds
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-4")

		// Act
		start := time.Now()
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)
		elapsed := time.Since(start)

		// Assert
		if err != nil {
			t.Errorf("expected no error after retry, got %v", err)
		}

		if atomic.LoadInt32(&requestCount) != 2 {
			t.Errorf("expected 2 requests, got %d", requestCount)
		}

		// Should wait ~1s (retry_after from 429 response)
		if elapsed < 900*time.Millisecond || elapsed > 1200*time.Millisecond {
			t.Logf("warning: expected ~1s delay, got %v (this might be flaky)", elapsed)
		}
	})

	t.Run("TC-5: should not retry 4xx client errors", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			// Return 401 Unauthorized
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-5")

		// Act
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)

		// Assert
		if err == nil {
			t.Fatal("expected error for 401, got nil")
		}

		// Should only attempt once (no retry for 4xx)
		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request (no retry for 4xx), got %d", requestCount)
		}

		clientErr, ok := err.(*ClientError)
		if !ok {
			t.Fatalf("expected ClientError, got %T", err)
		}

		if clientErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected status code=401, got %d", clientErr.StatusCode)
		}
	})

	t.Run("TC-6: should handle context timeout during retry", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			// Always fail with 5xx to trigger retry
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		// Create context with short timeout
		ctx := context.WithValue(context.Background(), requestIDKey, "test-request-6")
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		// Act
		err := notifier.sendWebhookRequestWithRetry(ctx, content, source)

		// Assert
		if err == nil {
			t.Fatal("expected context timeout error, got nil")
		}

		if !strings.Contains(err.Error(), "context") {
			t.Errorf("expected context-related error, got %v", err)
		}

		// Should attempt once, then fail during retry backoff
		count := atomic.LoadInt32(&requestCount)
		if count != 1 {
			t.Logf("expected 1 request, got %d (this might vary based on timing)", count)
		}
	})
}

// TASK-017: NotifyContent Method Unit Tests

func TestDiscordNotifier_NotifyContent(t *testing.T) {
	t.Run("TC-1: should send successful notification end-to-end", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          123,
			SourceID:    456,
			Title:       "Test Content",
			URL:         "https://example.com/content/123",
			Summary:     strPtr("This is a test content summary."),
			PublishedAt: time.Now(),
			CreatedAt:   time.Now(),
		}

		source := &entity.Source{
			ID:      456,
			Name:    "Test News Source",
			URL:     "https://example.com/feed",
			Active:  true,
		}

		ctx := context.Background()

		// Act
		err := notifier.NotifyContent(ctx, content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should generate request_id and log it", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.Background()

		// Act
		err := notifier.NotifyContent(ctx, content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		// Note: request_id is generated internally and logged
		// We can't directly verify it without exposing internal state
		// But we verify the notification succeeds, which means request_id was generated
	})

	t.Run("TC-3: should apply rate limiting before sending", func(t *testing.T) {
		// Arrange
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.Background()

		// Act
		err := notifier.NotifyContent(ctx, content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		// Verify webhook was called
		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 webhook request, got %d", requestCount)
		}

		// Note: Rate limiting is applied internally
		// We verify the notification succeeds, which means rate limiting passed
	})

	t.Run("TC-4: should return error but not panic on failure", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always fail with 5xx
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.Background()

		// Act
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("expected no panic, but got panic: %v", r)
				}
			}()
			err = notifier.NotifyContent(ctx, content, source)
		}()

		// Assert
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("TC-5: should not expose webhook URL token in logs", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		// Note: This test verifies the notifier doesn't expose the webhook URL in errors
		// In the actual implementation, the URL should be sanitized in log output
		notifier := NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: server.URL, // Using test server URL (safe)
			Timeout:    10 * time.Second,
		})

		content := &entity.Content{
			ID:          1,
			Title:       "Test Content",
			URL:         "https://example.com/content/1",
			Summary:     strPtr("Test summary"),
			PublishedAt: time.Now(),
		}

		source := &entity.Source{
			ID:   1,
			Name: "Test Source",
		}

		ctx := context.Background()

		// Act
		err := notifier.NotifyContent(ctx, content, source)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		// The actual log output should sanitize the webhook URL
		// This is verified by the slog.Info calls in the implementation
		// which log content_id and URL (content URL, not webhook URL)
	})
}

func TestNewDiscordNotifier(t *testing.T) {
	t.Run("should create Discord notifier with proper configuration", func(t *testing.T) {
		// Arrange
		config := DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/test",
			Timeout:    15 * time.Second,
		}

		// Act
		notifier := NewDiscordNotifier(config)

		// Assert
		if notifier == nil {
			t.Fatal("expected non-nil notifier")
		}
		if notifier.httpClient == nil {
			t.Error("expected http client to be initialized")
		}
		if notifier.httpClient.Timeout != config.Timeout {
			t.Errorf("expected timeout=%v, got %v", config.Timeout, notifier.httpClient.Timeout)
		}
		if notifier.rateLimiter == nil {
			t.Error("expected rate limiter to be initialized")
		}
		if notifier.config.WebhookURL != config.WebhookURL {
			t.Errorf("expected webhook URL=%q, got %q", config.WebhookURL, notifier.config.WebhookURL)
		}
	})
}

func TestErrorTypes(t *testing.T) {
	t.Run("RateLimitError should format correctly", func(t *testing.T) {
		err := &RateLimitError{
			Message:    "Discord rate limit exceeded",
			RetryAfter: 5 * time.Second,
		}

		expected := "Discord rate limit exceeded (retry after 5s)"
		if err.Error() != expected {
			t.Errorf("expected error=%q, got %q", expected, err.Error())
		}
	})

	t.Run("ClientError should format correctly", func(t *testing.T) {
		err := &ClientError{
			StatusCode: 400,
			Message:    "Bad request",
		}

		if err.Error() != "Bad request" {
			t.Errorf("expected error=%q, got %q", "Bad request", err.Error())
		}
	})

	t.Run("ServerError should format correctly", func(t *testing.T) {
		err := &ServerError{
			StatusCode: 500,
			Message:    "Internal server error",
		}

		if err.Error() != "Internal server error" {
			t.Errorf("expected error=%q, got %q", "Internal server error", err.Error())
		}
	})

	t.Run("is429Error should detect RateLimitError", func(t *testing.T) {
		rateLimitErr := &RateLimitError{
			Message:    "Rate limited",
			RetryAfter: 5 * time.Second,
		}

		detected, ok := is429Error(rateLimitErr)
		if !ok {
			t.Error("expected is429Error to return true for RateLimitError")
		}
		if detected != rateLimitErr {
			t.Error("expected is429Error to return the same error instance")
		}

		// Test with non-429 error
		clientErr := &ClientError{StatusCode: 400, Message: "Bad request"}
		_, ok = is429Error(clientErr)
		if ok {
			t.Error("expected is429Error to return false for ClientError")
		}
	})

	t.Run("isRetryableError should detect retryable errors", func(t *testing.T) {
		// Server errors should be retryable
		serverErr := &ServerError{StatusCode: 500, Message: "Server error"}
		if !isRetryableError(serverErr) {
			t.Error("expected ServerError to be retryable")
		}

		// Client errors should NOT be retryable
		clientErr := &ClientError{StatusCode: 400, Message: "Client error"}
		if isRetryableError(clientErr) {
			t.Error("expected ClientError to be non-retryable")
		}

		// Rate limit errors should NOT be retryable (handled separately)
		rateLimitErr := &RateLimitError{Message: "Rate limited", RetryAfter: 5 * time.Second}
		if isRetryableError(rateLimitErr) {
			t.Error("expected RateLimitError to be non-retryable (handled separately)")
		}

		// Generic errors (network errors) should be retryable
		genericErr := fmt.Errorf("connection refused")
		if !isRetryableError(genericErr) {
			t.Error("expected generic error to be retryable")
		}
	})
}
