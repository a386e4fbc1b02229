// Package upload publishes asciicast transcripts to an asciinema-compatible
// endpoint.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "ttycast/1.0"

	// maxResponseBytes bounds how much of the reply is kept as the URL or
	// error message.
	maxResponseBytes = 64 << 10
)

// Uploader publishes a transcript document and returns the endpoint's reply,
// normally the public URL of the recording.
type Uploader interface {
	Upload(ctx context.Context, document []byte) (string, error)
}

// StatusError is returned for any reply other than 201 Created
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload returned status_code: %d - %s", e.Status, e.Message)
}

// HTTPUploader posts the document as multipart field "asciicast" with basic
// auth. It never retries.
type HTTPUploader struct {
	URL      string
	Username string
	Token    string
	Client   *http.Client
	Timeout  time.Duration
}

// NewHTTPUploader validates the endpoint URL early
func NewHTTPUploader(rawURL, username, token string) (*HTTPUploader, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("upload: invalid url %q: %w", rawURL, err)
	}
	return &HTTPUploader{URL: rawURL, Username: username, Token: token}, nil
}

// Upload implements Uploader
func (u *HTTPUploader) Upload(ctx context.Context, document []byte) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("asciicast", "asciicast.json")
	if err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, body)
	if err != nil {
		return "", fmt.Errorf("upload: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.SetBasicAuth(u.Username, u.Token)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: request failed: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("upload: read response: %w", err)
	}
	text := strings.TrimSpace(string(reply))

	if resp.StatusCode != http.StatusCreated {
		return "", &StatusError{Status: resp.StatusCode, Message: text}
	}
	return text, nil
}
