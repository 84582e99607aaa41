package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

const (
	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 4096
)

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string, kind error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(c.httpClient, req, out, operation, kind)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.doJSON(c.httpClient, req, out, operation, domain.ErrServer)
}

// doJSON sends req and decodes a 2xx body into out. Non-2xx responses become
// *HTTPStatusError wrapped in a RemoteError of the given kind.
func (c *Client) doJSON(client *http.Client, req *http.Request, out any, operation string, kind error) error {
	if err := c.wait(req.Context(), operation); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return formatBackendHTTPError(operation, kind, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrProtocol, "decode "+operation+" response", err)
	}
	return nil
}

// HTTPStatusError is a non-2xx backend response.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "backend status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("backend %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("backend %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func formatBackendHTTPError(operation string, kind error, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(raw),
	}
	return fmt.Errorf("%w: %w", &domain.RemoteError{
		Kind:       kind,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    detailFromBody(raw),
	}, statusErr)
}

// detailFromBody extracts the optional "detail" string of an error body.
func detailFromBody(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}

// pageNumber accepts a JSON number or a numeric string. The backend sends
// "-" when a chunk has no page metadata; that decodes to 0.
type pageNumber int

func (p *pageNumber) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*p = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = pageNumber(n)
	return nil
}
