package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

// Gate reports whether chat may be used.
type Gate interface {
	IsAvailable() bool
}

type closedGate struct{}

func (closedGate) IsAvailable() bool { return false }

// ChatSession keeps the ordered conversation log and submits one question at
// a time. Failures become assistant turns; there is no separate error channel.
type ChatSession struct {
	client  ports.ChatClient
	gate    Gate
	metrics ports.ClientMetrics
	logger  *slog.Logger
	now     func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	turns    []domain.ChatTurn
	input    string
	inFlight bool

	updates feed[[]domain.ChatTurn]
}

// NewChatSession builds a session gated by gate. A nil gate keeps chat closed.
func NewChatSession(client ports.ChatClient, gate Gate, metrics ports.ClientMetrics, logger *slog.Logger) *ChatSession {
	if gate == nil {
		gate = closedGate{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatSession{
		client:     client,
		gate:       gate,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

func (s *ChatSession) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

func (s *ChatSession) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SendInput sends the current input field.
func (s *ChatSession) SendInput() error {
	return s.Send(s.Input())
}

// Send appends the user turn at once and asks the backend in the background.
// It does nothing and returns ErrEmptyQuestion, ErrGated or ErrBusy when the
// question is blank, chat is gated off, or another question is pending.
func (s *ChatSession) Send(question string) error {
	if strings.TrimSpace(question) == "" {
		return domain.ErrEmptyQuestion
	}
	if !s.gate.IsAvailable() {
		return domain.ErrGated
	}

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "send question", errors.New("chat session closed"))
	}
	if s.inFlight {
		s.mu.Unlock()
		return domain.ErrBusy
	}
	history := s.userHistoryLocked()
	s.inFlight = true
	s.turns = append(s.turns, domain.ChatTurn{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Text:      question,
		CreatedAt: s.now(),
	})
	s.updates.push(s.turnsLocked())
	s.wg.Add(1)
	s.mu.Unlock()

	s.updates.flush()
	go s.ask(question, history)
	return nil
}

func (s *ChatSession) ask(question string, history []domain.HistoryEntry) {
	defer s.wg.Done()

	started := s.now()
	answer, err := s.client.Ask(s.baseCtx, question, history)
	s.metrics.ObserveChat(s.now().Sub(started).Seconds(), err)

	turn := domain.ChatTurn{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Citations: []domain.Citation{},
	}
	if err != nil {
		turn.Text = chatFailureText(err)
		s.logger.Warn("chat_request_failed", "error", err)
	} else {
		turn.Text = answer.Text()
		if len(answer.Citations) > 0 {
			turn.Citations = make([]domain.Citation, len(answer.Citations))
			copy(turn.Citations, answer.Citations)
		}
	}

	s.mu.Lock()
	turn.CreatedAt = s.now()
	s.turns = append(s.turns, turn)
	s.input = ""
	s.inFlight = false
	s.updates.push(s.turnsLocked())
	s.mu.Unlock()

	s.updates.flush()
}

// Turns returns a copy of the conversation log.
func (s *ChatSession) Turns() []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnsLocked()
}

func (s *ChatSession) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Wait blocks until the pending question, if any, has resolved.
func (s *ChatSession) Wait() {
	s.wg.Wait()
}

func (s *ChatSession) Subscribe(fn func([]domain.ChatTurn)) func() {
	return s.updates.subscribe(fn)
}

// Close abandons the pending question; its turn is still appended.
func (s *ChatSession) Close() {
	s.baseCancel()
}

// userHistoryLocked lists prior user turns only. Assistant turns and
// citations are never echoed back to the backend.
func (s *ChatSession) userHistoryLocked() []domain.HistoryEntry {
	history := make([]domain.HistoryEntry, 0, len(s.turns))
	for _, turn := range s.turns {
		if turn.Role != domain.RoleUser {
			continue
		}
		history = append(history, domain.HistoryEntry{Role: turn.Role, Content: turn.Text})
	}
	return history
}

func (s *ChatSession) turnsLocked() []domain.ChatTurn {
	out := make([]domain.ChatTurn, len(s.turns))
	for i, turn := range s.turns {
		out[i] = turn.Clone()
	}
	return out
}

func chatFailureText(err error) string {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		if msg := strings.TrimSpace(remote.Message); msg != "" {
			return msg
		}
	}
	if domain.IsKind(err, domain.ErrChat) {
		return domain.MsgChatError
	}
	return domain.MsgServerError
}
