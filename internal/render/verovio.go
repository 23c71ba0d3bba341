// Package render submits MusicXML documents to a remote Verovio-style
// rendering service and returns the resulting SVG.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ykzou1214/musictoolkit/internal/score"
)

var (
	// ErrTimeout marks a rendering attempt that exceeded its deadline.
	ErrTimeout = errors.New("render service timed out")

	// ErrUnreachable marks a transport-level failure (connection
	// refused/reset) that survived the single retry.
	ErrUnreachable = errors.New("render service unreachable")
)

// ServiceError is a well-formed rejection from the rendering service.
// Retrying one of these is pointless; the service saw the input and
// said no.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("render service rejected request (status %d): %s", e.Status, e.Body)
}

// RenderedImage is the SVG output plus the identity of the score it
// renders.
type RenderedImage struct {
	SVG    []byte
	Source string
}

const (
	defaultTimeout = 30 * time.Second
	retryBackoff   = 500 * time.Millisecond
	maxBodyPreview = 512
)

// Renderer calls the remote rendering capability.
type Renderer struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewRenderer builds a renderer for the given service URL. A zero
// timeout selects the 30s default.
func NewRenderer(baseURL string, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Renderer{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Render serializes the document and submits it for rendering. One
// retry is attempted after a short backoff on transport failures only;
// a well-formed rejection is returned as-is.
func (r *Renderer) Render(ctx context.Context, doc *score.Document) (*RenderedImage, error) {
	if r.baseURL == "" {
		return nil, &ServiceError{Status: 0, Body: "rendering service URL not configured"}
	}

	data, err := doc.MusicXML()
	if err != nil {
		return nil, err
	}

	img, err := r.post(ctx, data)
	if err == nil {
		return &RenderedImage{SVG: img, Source: doc.Title}, nil
	}

	var rejection *ServiceError
	if errors.As(err, &rejection) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	// Transient transport failure: back off briefly and retry once.
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}

	img, retryErr := r.post(ctx, data)
	if retryErr == nil {
		return &RenderedImage{SVG: img, Source: doc.Title}, nil
	}
	if errors.As(retryErr, &rejection) {
		return nil, retryErr
	}
	if isTimeout(ctx, retryErr) {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, retryErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, retryErr)
}

func (r *Renderer) post(ctx context.Context, musicxml []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "score.musicxml")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(musicxml); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.baseURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Status: resp.StatusCode, Body: preview(body)}
	}

	var parsed struct {
		SVG string `json:"svg"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.SVG == "" {
		return nil, &ServiceError{Status: resp.StatusCode, Body: "malformed response body"}
	}
	return []byte(parsed.SVG), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil
}

func preview(body []byte) string {
	if len(body) > maxBodyPreview {
		body = body[:maxBodyPreview]
	}
	return string(body)
}
