package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

// Router exposes the client state and actions to local tools.
type Router struct {
	ingestor  ports.Ingestor
	kb        ports.KnowledgeBase
	chat      ports.Conversation
	documents ports.DocumentLister
	metrics   http.Handler
	logger    *slog.Logger
}

type Options struct {
	Documents ports.DocumentLister
	Metrics   http.Handler
	Logger    *slog.Logger
}

func NewRouter(ingestor ports.Ingestor, kb ports.KnowledgeBase, chat ports.Conversation, options Options) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingestor:  ingestor,
		kb:        kb,
		chat:      chat,
		documents: options.Documents,
		metrics:   options.Metrics,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/state", rt.state)
	mux.HandleFunc("POST /v1/select", rt.selectFile)
	mux.HandleFunc("POST /v1/upload", rt.startUpload)
	mux.HandleFunc("POST /v1/retry", rt.retry)
	mux.HandleFunc("POST /v1/knowledge-base/refresh", rt.refresh)
	mux.HandleFunc("POST /v1/chat", rt.ask)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}
	return withRequestLog(rt.logger, mux)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateView{
		Job:           newJobView(rt.ingestor.Snapshot()),
		KnowledgeBase: newKnowledgeBaseView(rt.kb.Status()),
		Turns:         rt.chat.Turns(),
		ChatInFlight:  rt.chat.InFlight(),
	})
}

func (rt *Router) selectFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := rt.ingestor.SelectPath(req.Path); err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(rt.ingestor.Snapshot()))
}

func (rt *Router) startUpload(w http.ResponseWriter, _ *http.Request) {
	if err := rt.ingestor.StartUpload(); err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newJobView(rt.ingestor.Snapshot()))
}

func (rt *Router) retry(w http.ResponseWriter, _ *http.Request) {
	if err := rt.ingestor.Retry(); err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newJobView(rt.ingestor.Snapshot()))
}

func (rt *Router) refresh(w http.ResponseWriter, _ *http.Request) {
	rt.kb.Refresh()
	writeJSON(w, http.StatusAccepted, newKnowledgeBaseView(rt.kb.Status()))
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := rt.chat.Send(req.Question); err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"turns": rt.chat.Turns()})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if rt.documents == nil {
		writeError(w, http.StatusNotImplemented, "document listing is not configured")
		return
	}
	docs, err := rt.documents.ListDocuments(r.Context())
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) writeDomainError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Warn("control_request_failed", "status", status, "error", err)
	}
	writeError(w, status, domain.UserMessage(err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
