// Package generate submits humming recordings to a remote
// melody-conditioned music generation service and returns the produced
// audio track.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrTimeout marks a generation attempt that exceeded its deadline.
	// Generation is expensive on the remote side, so there is no retry;
	// the caller decides whether to resubmit.
	ErrTimeout = errors.New("generation service timed out")

	// ErrInvalidInput marks an unreadable or non-audio humming file.
	ErrInvalidInput = errors.New("invalid humming input")
)

// ServiceError is a rejection or malfunction reported by the
// generation service.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service failed (status %d): %s", e.Status, e.Body)
}

// GeneratedTrack is the audio produced from a humming melody.
type GeneratedTrack struct {
	WAV         []byte
	StylePrompt string
}

const (
	defaultTimeout = 5 * time.Minute
	maxBodyPreview = 512
)

// Generator calls the remote music generation capability.
type Generator struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewGenerator builds a generator for the given service URL. A zero
// timeout selects the 5m default.
func NewGenerator(baseURL string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Generate uploads the humming file with the style prompt and returns
// the produced WAV track. A single attempt only.
func (g *Generator) Generate(ctx context.Context, hummingPath, stylePrompt string) (*GeneratedTrack, error) {
	if g.baseURL == "" {
		return nil, &ServiceError{Status: 0, Body: "generation service URL not configured"}
	}

	melody, err := os.ReadFile(hummingPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, hummingPath)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="melody"; filename=%q`, filepath.Base(hummingPath)))
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(melody); err != nil {
		return nil, err
	}
	if err := writer.WriteField("text", stylePrompt); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.baseURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, &ServiceError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, &ServiceError{Status: resp.StatusCode, Body: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		preview := body
		if len(preview) > maxBodyPreview {
			preview = preview[:maxBodyPreview]
		}
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(preview)}
	}
	if len(body) == 0 {
		return nil, &ServiceError{Status: resp.StatusCode, Body: "empty audio response"}
	}

	return &GeneratedTrack{WAV: body, StylePrompt: stylePrompt}, nil
}
