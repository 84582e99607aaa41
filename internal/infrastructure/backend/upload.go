package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/core/ports"
)

const uploadField = "file"

// Upload sends file as the multipart field "file". progress receives
// round(sent/total*100) whenever it grows.
func (c *Client) Upload(ctx context.Context, file domain.SelectedFile, progress ports.ProgressFunc) (domain.UploadResult, error) {
	if file.Open == nil {
		return nil, domain.WrapError(domain.ErrUpload, "upload", errors.New("selected file has no content"))
	}
	if err := c.wait(ctx, "upload"); err != nil {
		return nil, domain.WrapError(domain.ErrUpload, "upload", err)
	}

	content, err := file.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpload, "open upload file", err)
	}
	defer content.Close()

	head, tail, contentType, err := multipartEnvelope(file.Name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpload, "build multipart body", err)
	}
	total := int64(len(head)) + file.Size + int64(len(tail))
	body := &progressReader{
		reader:   io.MultiReader(bytes.NewReader(head), content, bytes.NewReader(tail)),
		total:    total,
		progress: progress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpload, "create upload request", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	started := time.Now()
	resp, err := c.uploadClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.WrapError(domain.ErrTimeout, "upload", err)
		}
		return nil, domain.WrapError(domain.ErrUpload, "upload", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.WrapError(domain.ErrTimeout, "read upload response", err)
		}
		return nil, domain.WrapError(domain.ErrUpload, "read upload response", err)
	}

	var result domain.UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domain.WrapError(domain.ErrProtocol, "decode upload response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{
			Kind:       domain.ErrUpload,
			Operation:  "upload",
			StatusCode: resp.StatusCode,
			Message:    detailFromBody(raw),
		}
	}
	if result == nil {
		result = domain.UploadResult{}
	}

	c.logger.Debug("upload_response",
		"filename", file.Name,
		"status", resp.StatusCode,
		"bytes", total,
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return result, nil
}

// multipartEnvelope renders the multipart preamble and trailer around a
// single file part so the request length is known up front.
func multipartEnvelope(filename string) (head, tail []byte, contentType string, err error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if _, err := writer.CreateFormFile(uploadField, filename); err != nil {
		return nil, nil, "", fmt.Errorf("create form file: %w", err)
	}
	headLen := buf.Len()
	if err := writer.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	all := buf.Bytes()
	head = append([]byte(nil), all[:headLen]...)
	tail = append([]byte(nil), all[headLen:]...)
	return head, tail, writer.FormDataContentType(), nil
}

type progressReader struct {
	reader   io.Reader
	total    int64
	progress ports.ProgressFunc

	mu   sync.Mutex
	sent int64
	last int
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.advance(int64(n))
	}
	return n, err
}

func (r *progressReader) advance(n int64) {
	if r.progress == nil || r.total <= 0 {
		return
	}
	r.mu.Lock()
	r.sent += n
	pct := int(math.Round(float64(r.sent) / float64(r.total) * 100))
	if pct > 100 {
		pct = 100
	}
	if pct <= r.last {
		r.mu.Unlock()
		return
	}
	r.last = pct
	r.mu.Unlock()
	r.progress(pct)
}
