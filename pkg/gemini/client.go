package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	RETRY_NUM       uint64 = 3
	defaultBaseURL         = "https://generativelanguage.googleapis.com"
	defaultModel           = "gemini-3-flash-preview"
	requestTimeout         = 120 * time.Second
)

// GenerativeClient is the single-shot text generation capability consumed
// by the analyzer and the test/fix generators. Implementations carry their
// own retry/backoff; callers see only the final outcome.
type GenerativeClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	APIKey    string
	BaseURL   string
	ModelName string
}

type geminiClient struct {
	resty     *resty.Client
	apiKey    string
	baseURL   string
	modelName string
	retryer   backoff.BackOff
	logger    logging.Logger
}

func NewClient(conf *Config, l logging.Logger) GenerativeClient {
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelName := conf.ModelName
	if modelName == "" {
		modelName = defaultModel
	}
	return &geminiClient{
		resty:     resty.New().SetTimeout(requestTimeout),
		apiKey:    conf.APIKey,
		baseURL:   baseURL,
		modelName: modelName,
		retryer:   backoff.WithMaxRetries(backoff.NewExponentialBackOff(), RETRY_NUM),
		logger:    l,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent sends one prompt and returns the response text. Network
// faults and server errors are retried with exponential backoff; rate-limit
// and client errors surface immediately so the caller can classify them.
func (g *geminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	var text string
	operation := func() error {
		t, err := g.generateContent(ctx, prompt)
		if err != nil {
			return err
		}
		text = t
		return nil
	}
	if err := backoff.RetryNotify(operation, g.retryer, g.newRetryLogger(ctx, "gemini generate")); err != nil {
		return "", err
	}
	return text, nil
}

func (g *geminiClient) generateContent(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.modelName)
	var result generateResponse
	var apiErr errorResponse
	resp, err := g.resty.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(&generateRequest{
			Contents: []content{{Parts: []part{{Text: prompt}}}},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(url)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	if resp.IsError() {
		return "", g.classifyHTTPError(resp.StatusCode(), apiErr.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", backoff.Permanent(&ParseError{Message: "no candidates in response"})
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// classifyHTTPError maps HTTP outcomes onto the fault taxonomy. Rate limits
// and client errors are permanent for the backoff loop; server errors stay
// retryable.
func (g *geminiClient) classifyHTTPError(statusCode int, message string) error {
	switch {
	case statusCode == 429:
		return backoff.Permanent(&RateLimitError{Message: message})
	case statusCode >= 500:
		return &APIError{StatusCode: statusCode, Message: message}
	default:
		return backoff.Permanent(&APIError{StatusCode: statusCode, Message: message})
	}
}

func (g *geminiClient) newRetryLogger(ctx context.Context, funcName string) func(error, time.Duration) {
	return func(err error, ti time.Duration) {
		g.logger.Warnf(ctx, "[RetryLogger] %s error: duration=%+v, err=%+v", funcName, ti, err)
	}
}
