package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Allocation failures are terminal for the current request: an administrator
// has to configure or extend a sequence before retrying can succeed.
var (
	ErrSequenceExhausted = errors.New("fiscal sequence exhausted")
	ErrSequenceExpired   = errors.New("fiscal sequence expired")
	ErrNoActiveSequence  = errors.New("no active fiscal sequence")
)

// Client calls the fiscal-service allocate endpoint. The atomic
// increment-and-return happens server-side in one round trip; this client
// never reads a counter and writes it back.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
	}
}

type allocateRequest struct {
	Prefix      string `json:"prefix"`
	ClientRNC   string `json:"client_rnc,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
}

type allocateError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AllocationDetails feed the issuance audit record kept by fiscal-service.
type AllocationDetails struct {
	ClientRNC   string
	ClientName  string
	PaymentRef  string
	AmountCents int64
}

// Allocate returns the next fiscal code for prefix, or one of the typed
// allocation errors.
func (c *Client) Allocate(ctx context.Context, prefix string, details AllocationDetails) (string, error) {
	body, err := json.Marshal(allocateRequest{
		Prefix:      prefix,
		ClientRNC:   details.ClientRNC,
		ClientName:  details.ClientName,
		PaymentRef:  details.PaymentRef,
		AmountCents: details.AmountCents,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/v1/ncf/allocate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fiscal allocate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var ncf string
		if err := json.NewDecoder(resp.Body).Decode(&ncf); err != nil {
			return "", fmt.Errorf("fiscal allocate: invalid response: %w", err)
		}
		if ncf == "" {
			return "", errors.New("fiscal allocate: empty code")
		}
		return ncf, nil
	}

	var payload allocateError
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("fiscal allocate: status %d", resp.StatusCode)
	}
	switch payload.Code {
	case "sequence_exhausted":
		return "", ErrSequenceExhausted
	case "sequence_expired":
		return "", ErrSequenceExpired
	case "no_active_sequence":
		return "", ErrNoActiveSequence
	}
	return "", fmt.Errorf("fiscal allocate: %s (status %d)", payload.Error, resp.StatusCode)
}
