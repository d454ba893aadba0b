package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/secrets"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 256
	defaultTimeout          = 30 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second

	// 50 requests per minute, bursts of 5.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5

	maxResponseBytes = 1 << 20
)

// AnthropicConfig configures the Claude-backed classifier.
type AnthropicConfig struct {
	APIKey     string `json:"-"`
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second
	Burst      int
	// Labels are the raw labels the model may answer with.
	Labels []string
}

// Anthropic classifies intent with the Claude Messages API.
type Anthropic struct {
	model       string
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	labels      []string
	scrubber    *secrets.Scrubber
	logger      *logging.Logger
}

// NewAnthropic creates the backend. An API key is required.
func NewAnthropic(cfg AnthropicConfig, deps Deps) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = Labels()
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	scrubber := deps.Scrubber
	if scrubber == nil {
		var err error
		if scrubber, err = secrets.New(nil); err != nil {
			return nil, fmt.Errorf("creating secret scrubber: %w", err)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Anthropic{
		model:       model,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		httpClient:  client,
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries:  maxRetries,
		baseBackoff: defaultBaseBackoff,
		labels:      labels,
		scrubber:    scrubber,
		logger:      logger.Named("anthropic"),
	}, nil
}

// Name implements Model.
func (a *Anthropic) Name() string { return BackendAnthropic }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type labelAnswer struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (a *Anthropic) systemPrompt(batch bool) string {
	var b strings.Builder
	b.WriteString("You classify the intent of workplace messages (emails, chat messages, meeting transcript excerpts).\n")
	b.WriteString("Answer with exactly one of these labels: ")
	b.WriteString(strings.Join(a.labels, ", "))
	b.WriteString(".\n")
	if batch {
		b.WriteString(`Messages are numbered. Respond ONLY with a JSON array containing one object per message: {"index": <number>, "label": "<label>", "confidence": <0.0 to 1.0>}.`)
	} else {
		b.WriteString(`Respond ONLY with a JSON object: {"label": "<label>", "confidence": <0.0 to 1.0>}.`)
	}
	return b.String()
}

// Classify implements Model. Secrets are redacted before the text leaves
// the process.
func (a *Anthropic) Classify(ctx context.Context, text string) (Prediction, error) {
	reply, err := a.complete(ctx, a.systemPrompt(false), a.scrubber.Redact(text))
	if err != nil {
		return Prediction{}, err
	}

	var ans labelAnswer
	if err := json.Unmarshal([]byte(extractJSON(reply, '{', '}')), &ans); err != nil {
		return Prediction{}, fmt.Errorf("parsing classification: %w", err)
	}
	return a.prediction(ans), nil
}

// ClassifyBatch implements BatchModel with a single request carrying all
// texts.
func (a *Anthropic) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) == 1 {
		p, err := a.Classify(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return []Prediction{p}, nil
	}

	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(a.scrubber.Redact(t), "\n", " "))
	}

	reply, err := a.complete(ctx, a.systemPrompt(true), b.String())
	if err != nil {
		return nil, err
	}

	var answers []labelAnswer
	if err := json.Unmarshal([]byte(extractJSON(reply, '[', ']')), &answers); err != nil {
		return nil, fmt.Errorf("parsing batch classification: %w", err)
	}

	out := make([]Prediction, len(texts))
	seen := make([]bool, len(texts))
	for _, ans := range answers {
		i := ans.Index - 1
		if i < 0 || i >= len(texts) || seen[i] {
			continue
		}
		out[i] = a.prediction(ans)
		seen[i] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("batch classification missing message %d of %d", i+1, len(texts))
		}
	}
	return out, nil
}

func (a *Anthropic) prediction(ans labelAnswer) Prediction {
	conf := ans.Confidence
	if conf < 0 || math.IsNaN(conf) {
		conf = 0
	}
	return Prediction{
		Label:      strings.ToLower(strings.TrimSpace(ans.Label)),
		Confidence: min(conf, 1),
	}
}

// complete sends one user message, retrying rate limits, server errors and
// transport failures with exponential backoff.
func (a *Anthropic) complete(ctx context.Context, system, user string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.baseBackoff * time.Duration(1<<(attempt-1))
			a.logger.Warn(ctx, "anthropic request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := a.doRequest(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (a *Anthropic) doRequest(ctx context.Context, req anthropicRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: errors.New("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp anthropicError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d)", resp.StatusCode)
	}

	var claudeResp anthropicResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(claudeResp.Content) == 0 {
		return "", errors.New("empty response from API")
	}
	return claudeResp.Content[0].Text, nil
}

// extractJSON trims markdown fences and surrounding prose from a model
// reply, returning the outermost open..close span.
func extractJSON(reply string, openCh, closeCh byte) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, openCh)
	end := strings.LastIndexByte(s, closeCh)
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// retryableError marks failures worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ BatchModel = (*Anthropic)(nil)
