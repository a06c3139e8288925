package replies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/pkg/logging"
)

// HTTPService posts requests as JSON to a remote endpoint.
type HTTPService struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewHTTPService creates a client for url. A nil client gets a 30s timeout.
func NewHTTPService(url string, client *http.Client, logger *logging.Logger) *HTTPService {
	if strings.TrimSpace(url) == "" {
		panic("replies: service url required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPService{url: url, client: client, logger: logger}
}

func (s *HTTPService) Reply(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("replies: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("replies: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("reply service returned error status", "status", resp.StatusCode, "body", string(snippet))
		return Response{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return out, nil
}
