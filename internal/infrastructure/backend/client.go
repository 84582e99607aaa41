package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/infrastructure/resilience"
)

const (
	uploadPath    = "/api/upload"
	chatPath      = "/api/chat"
	chunksPath    = "/api/chunks"
	documentsPath = "/api/documents"
)

// Client talks to the document QA backend over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	executor     *resilience.Executor
	limiter      *rate.Limiter
	logger       *slog.Logger
}

type Options struct {
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Transport      http.RoundTripper
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, options Options) *Client {
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	uploadTimeout := options.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 15 * time.Minute
	}
	transport := options.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if options.RateLimitRPS > 0 {
		burst := options.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: requestTimeout, Transport: transport},
		uploadClient: &http.Client{Timeout: uploadTimeout, Transport: transport},
		executor:     options.Executor,
		limiter:      limiter,
		logger:       logger,
	}
}

type chatRequest struct {
	Question    string                `json:"question"`
	ChatHistory []domain.HistoryEntry `json:"chat_history"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Detail  string       `json:"detail"`
	Sources []wireSource `json:"sources"`
}

type wireSource struct {
	Page    pageNumber `json:"page"`
	Content string     `json:"content"`
	Score   float64    `json:"score"`
}

type chunksResponse struct {
	TotalCount       int  `json:"total_count"`
	TotalTargetCount *int `json:"total_target_count"`
}

type documentsResponse struct {
	Documents []domain.DocumentInfo `json:"documents"`
}

// Ask sends question plus the prior user turns to the chat endpoint.
func (c *Client) Ask(ctx context.Context, question string, history []domain.HistoryEntry) (domain.ChatAnswer, error) {
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	payload := chatRequest{Question: question, ChatHistory: history}

	resp, err := resilience.Call(ctx, c.executor, "backend.chat", func(callCtx context.Context) (chatResponse, error) {
		var out chatResponse
		err := c.postJSON(callCtx, chatPath, payload, &out, "chat", domain.ErrChat)
		return out, err
	}, classifyBackendError)
	if err != nil {
		return domain.ChatAnswer{}, wrapServerIfNeeded("chat", err)
	}

	citations := make([]domain.Citation, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		citations = append(citations, domain.Citation{
			PageNumber:     int(src.Page),
			Snippet:        src.Content,
			RelevanceScore: src.Score,
		})
	}
	return domain.ChatAnswer{
		Answer:    resp.Answer,
		Detail:    resp.Detail,
		Citations: citations,
	}, nil
}

// CheckIngestionStatus reads the chunk counters. A missing or null
// total_target_count leaves TargetCount nil.
func (c *Client) CheckIngestionStatus(ctx context.Context) (domain.IngestionStatus, error) {
	resp, err := resilience.Call(ctx, c.executor, "backend.chunks", func(callCtx context.Context) (chunksResponse, error) {
		var out chunksResponse
		err := c.getJSON(callCtx, chunksPath, &out, "chunks")
		return out, err
	}, classifyBackendError)
	if err != nil {
		return domain.IngestionStatus{}, domain.WrapError(domain.ErrPoll, "check ingestion status", err)
	}
	return domain.IngestionStatus{
		ProcessedCount: resp.TotalCount,
		TargetCount:    resp.TotalTargetCount,
	}, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error) {
	var resp documentsResponse
	if err := c.getJSON(ctx, documentsPath, &resp, "documents"); err != nil {
		return nil, wrapServerIfNeeded("list documents", err)
	}
	if resp.Documents == nil {
		return []domain.DocumentInfo{}, nil
	}
	return resp.Documents, nil
}

func (c *Client) wait(ctx context.Context, operation string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", operation, err)
	}
	return nil
}
