package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/radioteateonair/radiod/pkg/logging"
)

// BasicErrorHandler implements the ErrorHandler interface with retry logic
// and centralized logging
type BasicErrorHandler struct {
	retryConfig *RetryConfig
	logger      logging.Logger
	repository  PlayerRepository
	station     string
}

// NewBasicErrorHandler creates a new BasicErrorHandler instance
func NewBasicErrorHandler(config *RetryConfig, logger logging.Logger, repo PlayerRepository, station string) ErrorHandler {
	return &BasicErrorHandler{
		retryConfig: config,
		logger:      logger.WithPipeline("error-handler"),
		repository:  repo,
		station:     station,
	}
}

// HandleError processes an error and determines if it should be retried and
// with what delay
func (beh *BasicErrorHandler) HandleError(err error, context string) (shouldRetry bool, delay time.Duration) {
	beh.LogError(err, context)

	if !beh.IsRetryableError(err) {
		beh.logger.Info("Error is not retryable, skipping retry logic", map[string]interface{}{
			"error":      err.Error(),
			"context":    context,
			"error_type": beh.classifyErrorType(err),
		})
		return false, 0
	}

	delay = beh.GetRetryDelay(1)

	beh.logger.Info("Error is retryable, will attempt retry", map[string]interface{}{
		"error":       err.Error(),
		"context":     context,
		"error_type":  beh.classifyErrorType(err),
		"retry_delay": delay.String(),
	})

	return true, delay
}

// LogError logs an error with classification and persists it
func (beh *BasicErrorHandler) LogError(err error, context string) {
	if err == nil {
		return
	}

	errorType := beh.classifyErrorType(err)

	beh.logger.Error("Playback error", err, map[string]interface{}{
		"context":    context,
		"error_type": errorType,
	})

	if beh.repository != nil {
		record := CreatePlayerError(beh.station, errorType, err.Error(), context)
		if saveErr := beh.repository.SaveError(record); saveErr != nil {
			beh.logger.Warn("Failed to persist error record", map[string]interface{}{
				"persist_error": saveErr.Error(),
			})
		}
	}
}

// IsRetryableError determines if an error should be retried based on its
// type and characteristics
func (beh *BasicErrorHandler) IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation means the coordinator is shutting down, never retry
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch beh.classifyErrorType(err) {
	case "network", "timeout", "stream", "process":
		return true
	default:
		return false
	}
}

// GetRetryDelay calculates the retry delay for a given attempt
func (beh *BasicErrorHandler) GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(beh.retryConfig.BaseDelay) * math.Pow(beh.retryConfig.Multiplier, float64(attempt-1))
	if delay > float64(beh.retryConfig.MaxDelay) {
		return beh.retryConfig.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetryAfterAttempts reports whether another retry is allowed after
// the given number of attempts. MaxRetries of zero means retry forever.
func (beh *BasicErrorHandler) ShouldRetryAfterAttempts(attempts int, err error) bool {
	if !beh.IsRetryableError(err) {
		return false
	}
	if beh.retryConfig.MaxRetries == 0 {
		return true
	}
	return attempts < beh.retryConfig.MaxRetries
}

// classifyErrorType returns a string classification of the error type
func (beh *BasicErrorHandler) classifyErrorType(err error) string {
	if err == nil {
		return "none"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	if isNetworkError(err) {
		return "network"
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "stream"
	}

	if isProcessError(err) {
		return "process"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "dns"),
		strings.Contains(errStr, "unreachable"), strings.Contains(errStr, "refused"):
		return "network"
	case strings.Contains(errStr, "stream"), strings.Contains(errStr, "eof"):
		return "stream"
	default:
		return "unknown"
	}
}

// isNetworkError checks for common low-level network failures
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// isProcessError checks for decoder subprocess failures
func isProcessError(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "ffmpeg") ||
		strings.Contains(errStr, "exit status") ||
		strings.Contains(errStr, "signal:")
}

// CreateMaxRetriesError wraps the final error once the retry ceiling is hit
func CreateMaxRetriesError(lastErr error, attempts int) error {
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
