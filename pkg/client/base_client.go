package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrInvalidResponse is returned for a non-2xx status whose body carries no
// usable provider message.
var ErrInvalidResponse = errors.New("invalid response from weather API")

// ProviderError carries the message field extracted from a provider error
// body (OpenWeatherMap returns {"cod": "...", "message": "..."}).
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// DecodeError wraps a JSON decoding failure on a 2xx response.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode weather data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseClient issues single-shot GET requests through a circuit breaker. Each
// call is independent and read-only; there is no retry or caching layer.
type BaseClient struct {
	client         HTTPClient
	logger         *zap.Logger
	circuitBreaker *gobreaker.CircuitBreaker
}

type ClientConfig struct {
	Timeout        time.Duration
	BreakerTimeout time.Duration
}

func NewBaseClient(name string, config ClientConfig, logger *zap.Logger) *BaseClient {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	breakerSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A ProviderError means the provider answered (bad city name, bad
		// key); only transport and decode failures count toward opening.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var provErr *ProviderError
			return errors.As(err, &provErr)
		},
	}

	return &BaseClient{
		client:         httpClient,
		logger:         logger,
		circuitBreaker: gobreaker.NewCircuitBreaker(breakerSettings),
	}
}

// GetJSON performs one GET and decodes the 2xx body into out. A non-2xx
// response surfaces the provider's message field when present, otherwise
// ErrInvalidResponse.
func (c *BaseClient) GetJSON(ctx context.Context, url string, out interface{}) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doGet(ctx, url, out)
	})
	return err
}

func (c *BaseClient) doGet(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request failed: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("HTTP request failed", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Message != "" {
			return &ProviderError{Message: errBody.Message}
		}
		c.logger.Warn("Provider returned error status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return ErrInvalidResponse
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Err: err}
	}

	c.logger.Debug("Request successful",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_size", len(body)))

	return nil
}
