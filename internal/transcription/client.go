package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/question"
)

// Client sends finalized chunks to a transcription API
type Client struct {
	config     Config
	httpClient *http.Client
	sem        *semaphore.Weighted
	recorder   Recorder
	logger     *slog.Logger
	newID      func() string

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration
	activeRequests  int

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	Endpoint        string
	APIKey          string
	Language        string
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int
	InitialInterval time.Duration // first retry delay
}

// Recorder receives transcription metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordTranscriptionRequest()
	RecordTranscriptionRetry()
	RecordTranscriptionSuccess(durationSeconds float64)
	RecordTranscriptionFailure(durationSeconds float64)
}

// Response is the JSON body returned by the transcription API
type Response struct {
	ChunkID    string  `json:"chunk_id,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Option configures a Client
type Option func(*Client)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithIDGenerator overrides transcription result id generation
func WithIDGenerator(newID func() string) Option {
	return func(c *Client) {
		c.newID = newID
	}
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	if config.InitialInterval <= 0 {
		config.InitialInterval = 500 * time.Millisecond
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe encodes chunk as WAV and sends it for transcription, retrying
// server errors, rate limiting and transport failures with exponential backoff.
func (c *Client) Transcribe(ctx context.Context, chunk *audio.Chunk) (question.TranscriptionResult, error) {
	if chunk == nil || len(chunk.Samples) == 0 {
		return question.TranscriptionResult{}, fmt.Errorf("chunk has no audio")
	}

	body, contentType, err := c.createMultipartRequest(chunk)
	if err != nil {
		return question.TranscriptionResult{}, fmt.Errorf("failed to create multipart request: %w", err)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return question.TranscriptionResult{}, err
	}
	defer c.sem.Release(1)

	c.begin()
	startTime := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialInterval
	b.MaxInterval = 30 * time.Second

	attempt := 0
	response, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		resp, err := c.doRequest(ctx, body, contentType)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.config.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.retried()
			c.logger.Warn("Transcription request failed, retrying",
				slog.String("chunk_id", chunk.ID),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", next),
				slog.String("error", err.Error()))
		}),
	)

	elapsed := time.Since(startTime)
	c.finish(err == nil, elapsed)
	if err != nil {
		return question.TranscriptionResult{}, fmt.Errorf("transcription failed after %d attempts: %w", attempt, err)
	}

	language := response.Language
	if language == "" {
		language = c.config.Language
	}

	c.logger.Debug("Chunk transcribed",
		slog.String("chunk_id", chunk.ID),
		slog.Int("text_length", len(response.Text)),
		slog.Duration("elapsed", elapsed))

	return question.TranscriptionResult{
		ID:         c.newID(),
		Text:       response.Text,
		Timestamp:  chunk.Timestamp,
		Confidence: response.Confidence,
		ChunkID:    chunk.ID,
		Language:   language,
	}, nil
}

// doRequest performs a single HTTP request to the transcription API
func (c *Client) doRequest(ctx context.Context, body []byte, contentType string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Live-Question-Service/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode == http.StatusTooManyRequests {
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
				return nil, errors.Join(statusErr, backoff.RetryAfter(seconds))
			}
		}
		return nil, statusErr
	}

	var transcriptionResp Response
	if err := json.Unmarshal(respBody, &transcriptionResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response JSON: %w", err))
	}

	return &transcriptionResp, nil
}

// createMultipartRequest builds the multipart/form-data body for chunk
func (c *Client) createMultipartRequest(chunk *audio.Chunk) ([]byte, string, error) {
	wav, err := audio.EncodeWAV(chunk.Samples, chunk.SampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode WAV: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", chunk.ID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"chunk_id", chunk.ID},
		{"sample_rate", strconv.Itoa(chunk.SampleRate)},
		{"duration", strconv.FormatFloat(chunk.DurationMs/1000, 'f', 3, 64)},
		{"estimated_words", strconv.Itoa(chunk.EstimatedWordCount)},
		{"chunk_timestamp", chunk.Timestamp.Format(time.RFC3339Nano)},
		{"response_format", "json"},
	}
	if c.config.Language != "" {
		fields = append(fields, [2]string{"language", c.config.Language})
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// isRetryable treats transport failures, 5xx and 429 as transient
func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func (c *Client) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.activeRequests++
	if c.recorder != nil {
		c.recorder.RecordTranscriptionRequest()
	}
}

func (c *Client) retried() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
	if c.recorder != nil {
		c.recorder.RecordTranscriptionRetry()
	}
}

func (c *Client) finish(ok bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeRequests--

	if !ok {
		c.failedRequests++
		if c.recorder != nil {
			c.recorder.RecordTranscriptionFailure(elapsed.Seconds())
		}
		return
	}

	c.successRequests++
	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = elapsed
	} else {
		c.avgResponseTime = (c.avgResponseTime + elapsed) / 2
	}
	if c.recorder != nil {
		c.recorder.RecordTranscriptionSuccess(elapsed.Seconds())
	}
}

// Stats returns current client statistics
func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  c.activeRequests,
	}
}

// Close waits for in-flight requests to complete
func (c *Client) Close(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, int64(c.config.MaxConcurrent)); err != nil {
		return err
	}
	c.sem.Release(int64(c.config.MaxConcurrent))
	c.httpClient.CloseIdleConnections()
	return nil
}
