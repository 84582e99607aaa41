package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

func newBackend(t *testing.T, chunks string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chunks":
			_, _ = io.WriteString(w, chunks)
		case "/api/documents":
			_, _ = io.WriteString(w, `{"documents":[{"filename":"report.pdf","upload_date":"2026-10-01","chunks_count":3,"status":"indexed"}]}`)
		case "/api/chat":
			var req struct {
				Question string `json:"question"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"answer":  "echo " + req.Question,
				"sources": []map[string]any{{"page": 1, "content": "first page", "score": 0.5}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func run(t *testing.T, baseURL, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DOCQA_CONFIG_FILE", "")
	t.Setenv("DOCQA_BASE_URL", baseURL)
	t.Setenv("DOCQA_LOG_LEVEL", "error")
	t.Setenv("DOCQA_RATE_LIMIT_RPS", "0")
	t.Setenv("DOCQA_NATS_URL", "")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	server := newBackend(t, `{"total_count":3}`)

	out, err := run(t, server.URL, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "knowledge base: ready (3 chunks)") {
		t.Fatalf("expected ready line, got %q", out)
	}
	if !strings.Contains(out, "report.pdf") || !strings.Contains(out, "indexed") {
		t.Fatalf("expected document table, got %q", out)
	}
}

func TestAskCommand(t *testing.T) {
	server := newBackend(t, `{"total_count":3}`)

	out, err := run(t, server.URL, "", "ask", "what", "is", "this?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "assistant> echo what is this?") {
		t.Fatalf("expected answer, got %q", out)
	}
	if !strings.Contains(out, "[p.1] first page (0.50)") {
		t.Fatalf("expected citation, got %q", out)
	}
}

func TestAskCommandGatedOnEmptyKnowledgeBase(t *testing.T) {
	server := newBackend(t, `{"total_count":0}`)

	out, err := run(t, server.URL, "", "ask", "anything")
	if !errors.Is(err, domain.ErrGated) {
		t.Fatalf("expected ErrGated, got %v", err)
	}
	if !strings.Contains(out, "empty, upload a PDF first") {
		t.Fatalf("expected empty line, got %q", out)
	}
}

func TestChatCommandReadsQuestionsUntilQuit(t *testing.T) {
	server := newBackend(t, `{"total_count":2}`)

	out, err := run(t, server.URL, "first\n\n/unknown\nsecond\n/quit\nignored\n", "chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	for _, want := range []string{"assistant> echo first", "assistant> echo second", chatHelp} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
	if strings.Contains(out, "echo ignored") {
		t.Fatalf("expected input after /quit to be ignored, got %q", out)
	}
}

func TestUploadCommandReportsSelectionError(t *testing.T) {
	server := newBackend(t, `{"total_count":0}`)

	_, err := run(t, server.URL, "", "upload", "notes.txt")
	if err == nil {
		t.Fatal("expected selection error")
	}
}

func TestBaseURLFlagOverridesEnvironment(t *testing.T) {
	server := newBackend(t, `{"total_count":5}`)

	out, err := run(t, "http://127.0.0.1:1", "", "status", "--base-url", server.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "ready (5 chunks)") {
		t.Fatalf("expected flag URL to be used, got %q", out)
	}
}
