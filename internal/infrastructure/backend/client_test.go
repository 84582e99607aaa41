package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/infrastructure/resilience"
)

func TestAskSendsQuestionAndHistory(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get(requestIDHeader) == "" {
			t.Errorf("expected request id header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"answer":"Q2 was 12M","sources":[{"page":3,"content":"revenue table","score":0.91},{"page":"-","content":"cover","score":0.2}]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	history := []domain.HistoryEntry{{Role: domain.RoleUser, Content: "What was Q1 revenue?"}}
	answer, err := client.Ask(context.Background(), "And Q2?", history)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if captured.Question != "And Q2?" {
		t.Fatalf("expected question And Q2?, got %q", captured.Question)
	}
	if len(captured.ChatHistory) != 1 || captured.ChatHistory[0] != history[0] {
		t.Fatalf("unexpected chat history: %+v", captured.ChatHistory)
	}
	if answer.Text() != "Q2 was 12M" {
		t.Fatalf("unexpected answer %q", answer.Text())
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(answer.Citations))
	}
	if answer.Citations[0].PageNumber != 3 || answer.Citations[0].RelevanceScore != 0.91 {
		t.Fatalf("unexpected first citation: %+v", answer.Citations[0])
	}
	if answer.Citations[1].PageNumber != 0 {
		t.Fatalf("expected page 0 for '-', got %d", answer.Citations[1].PageNumber)
	}
}

func TestAskSendsEmptyHistoryArray(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer server.Close()

	if _, err := New(server.URL).Ask(context.Background(), "hi", nil); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if string(raw["chat_history"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["chat_history"])
	}
}

func TestAskReturnsChatErrorWithDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"index unavailable"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Ask(context.Background(), "q", nil)
	if !domain.IsKind(err, domain.ErrChat) {
		t.Fatalf("expected ErrChat, got %v", err)
	}
	if domain.UserMessage(err) != "index unavailable" {
		t.Fatalf("expected server detail, got %q", domain.UserMessage(err))
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected wrapped HTTPStatusError, got %v", err)
	}
}

func TestAskWithoutDetailFallsBackToChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(server.URL).Ask(context.Background(), "q", nil)
	if domain.UserMessage(err) != domain.MsgChatError {
		t.Fatalf("expected %q, got %q", domain.MsgChatError, domain.UserMessage(err))
	}
}

func TestAskNetworkFailureIsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url).Ask(context.Background(), "q", nil)
	if !domain.IsKind(err, domain.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
	if domain.UserMessage(err) != domain.MsgServerError {
		t.Fatalf("expected %q, got %q", domain.MsgServerError, domain.UserMessage(err))
	}
}

func TestAskOpenCircuitIsServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Breaker: resilience.Breaker{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute},
	}, nil)
	client := NewWithOptions(server.URL, Options{Executor: exec})

	if _, err := client.Ask(context.Background(), "q", nil); !domain.IsKind(err, domain.ErrChat) {
		t.Fatalf("expected ErrChat on first call, got %v", err)
	}
	_, err := client.Ask(context.Background(), "q", nil)
	if !domain.IsKind(err, domain.ErrServer) || !resilience.IsCircuitOpen(err) {
		t.Fatalf("expected open-circuit server error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls.Load())
	}
}

func TestCheckIngestionStatusParsesTarget(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		count  int
		target *int
	}{
		{name: "with target", body: `{"chunks":[],"total_count":5,"total_target_count":9}`, count: 5, target: intPtr(9)},
		{name: "null target", body: `{"total_count":2,"total_target_count":null}`, count: 2},
		{name: "missing target", body: `{"total_count":0}`, count: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != chunksPath || r.Method != http.MethodGet {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			status, err := New(server.URL).CheckIngestionStatus(context.Background())
			if err != nil {
				t.Fatalf("CheckIngestionStatus() error = %v", err)
			}
			if status.ProcessedCount != tc.count {
				t.Fatalf("expected count %d, got %d", tc.count, status.ProcessedCount)
			}
			switch {
			case tc.target == nil && status.TargetCount != nil:
				t.Fatalf("expected unknown target, got %d", *status.TargetCount)
			case tc.target != nil && (status.TargetCount == nil || *status.TargetCount != *tc.target):
				t.Fatalf("expected target %d, got %v", *tc.target, status.TargetCount)
			}
		})
	}
}

func TestCheckIngestionStatusErrorIsPollKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := New(server.URL).CheckIngestionStatus(context.Background())
	if !domain.IsKind(err, domain.ErrPoll) {
		t.Fatalf("expected ErrPoll, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrProtocol) {
		t.Fatalf("expected ErrProtocol cause, got %v", err)
	}
}

func TestListDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"filename":"1700000000_report.pdf","upload_date":"2024-05-01T10:00:00.123456","chunks_count":42,"status":"processed"}]}`))
	}))
	defer server.Close()

	docs, err := New(server.URL).ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ChunksCount != 42 || docs[0].Status != "processed" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":1}`))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})
	if _, err := client.CheckIngestionStatus(context.Background()); err != nil {
		t.Fatalf("first call should pass the limiter, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.CheckIngestionStatus(ctx); err == nil {
		t.Fatalf("expected limiter wait to fail once the context expires")
	}
}

func intPtr(v int) *int { return &v }
