package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/internal/intake"
)

// HTTPEndpoint submits requests to a remote booking endpoint that speaks
// the same protocol as Handler.Create.
type HTTPEndpoint struct {
	url    string
	client *http.Client
}

// NewHTTPEndpoint creates a client for url.
func NewHTTPEndpoint(url string, client *http.Client) *HTTPEndpoint {
	if strings.TrimSpace(url) == "" {
		panic("booking: endpoint url required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPEndpoint{url: url, client: client}
}

func (e *HTTPEndpoint) Submit(ctx context.Context, req AppointmentRequest) (*Confirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("booking: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("booking: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		var conf Confirmation
		if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
			return nil, fmt.Errorf("booking: decode confirmation: %w", err)
		}
		return &conf, nil
	}

	var failure errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&failure)
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		if len(failure.Fields) > 0 {
			return nil, fmt.Errorf("booking: rejected: %w", intake.FieldErrors(failure.Fields))
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, failure.Error)
	case resp.StatusCode == http.StatusConflict:
		return nil, &BusinessRuleError{Err: ErrOutsideBusinessHours, Date: req.Date, ValidHours: failure.ValidHours}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrConnectivity, resp.StatusCode)
	default:
		return nil, fmt.Errorf("booking: unexpected status %d", resp.StatusCode)
	}
}
