package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carevox/carevox/internal/reliability"
)

// MintRequest asks the excluded backend for an ephemeral credential
// scoped to one realtime session.
type MintRequest struct {
	PatientName  string `json:"patient_name,omitempty"`
	SystemPrompt string `json:"system_prompt"`
	Voice        string `json:"voice"`
	Mode         string `json:"mode,omitempty"`
}

// Credential is the short-lived token used to authenticate the
// subsequent realtime session.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenClient mints ephemeral credentials from the session bootstrap
// endpoint.
type TokenClient struct {
	baseURL string
	http    *http.Client
}

func NewTokenClient(baseURL string, timeout time.Duration) *TokenClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Mint requests a credential. Any non-success response surfaces as a
// human-readable error; the engine reports it once and does not retry.
func (c *TokenClient) Mint(ctx context.Context, req MintRequest) (Credential, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Credential{}, fmt.Errorf("encode bootstrap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/realtime/token", bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("build bootstrap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Credential{}, fmt.Errorf("session bootstrap unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return Credential{}, fmt.Errorf("session bootstrap temporarily unavailable (%d): %s", resp.StatusCode, msg)
		}
		return Credential{}, fmt.Errorf("session bootstrap rejected the request (%d): %s", resp.StatusCode, msg)
	}

	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return Credential{}, fmt.Errorf("decode bootstrap response: %w", err)
	}
	if strings.TrimSpace(cred.Token) == "" {
		return Credential{}, fmt.Errorf("session bootstrap returned an empty credential")
	}
	return cred, nil
}
