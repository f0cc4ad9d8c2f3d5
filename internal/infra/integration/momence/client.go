package momence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

type Client struct {
	baseURL    string
	http       *http.Client
	pace       time.Duration
	signatures *SignatureRotator
}

func NewClient(baseURL string, timeout, pace time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		pace:       pace,
		signatures: NewSignatureRotator(),
	}
}

// WithSignatures swaps the rotation pool (tests, ops reconfiguration).
func (c *Client) WithSignatures(r *SignatureRotator) *Client {
	c.signatures = r
	return c
}

// Deliver submits one lead to the tenant's collector endpoint. A fixed pacing
// delay is applied before every call, success or not, to stay under the
// endpoint's rate limiting.
func (c *Client) Deliver(ctx context.Context, lead entity.LeadEntry, tenant *entity.Tenant) error {
	if strings.TrimSpace(lead.Email) == "" {
		return &DeliveryError{Reason: ReasonInvalidPayload, Retryable: false, Message: "lead has no email"}
	}

	if c.pace > 0 {
		select {
		case <-ctx.Done():
			return &DeliveryError{Reason: ReasonNetwork, Retryable: true, Message: ctx.Err().Error()}
		case <-time.After(c.pace):
		}
	}

	payload := leadCollectorRequest{
		Token:           tenant.APIToken,
		Email:           lead.Email,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		SourceID:        lead.SourceID,
		PhoneNumber:     lead.Phone,
		ZipCode:         lead.ZipCode,
		DiscoveryAnswer: lead.DiscoveryAnswer,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Reason: ReasonInvalidPayload, Retryable: false, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/host/%s/lead-collector", c.baseURL, tenant.HostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return &DeliveryError{Reason: ReasonInvalidPayload, Retryable: false, Message: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Reason: ReasonNetwork, Retryable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return classify(resp, string(body))
}

func (c *Client) setHeaders(req *http.Request) {
	sig := c.signatures.Next()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", sig.UserAgent)
	req.Header.Set("Accept-Language", sig.AcceptLanguage)
	req.Header.Set("Origin", sig.Origin)
}

func classify(resp *http.Response, body string) *DeliveryError {
	status := resp.StatusCode

	if looksLikeEdgeChallenge(resp, body) {
		return &DeliveryError{Reason: ReasonEdgeDefense, Retryable: true, StatusCode: status, Message: snippet(body)}
	}

	switch status {
	case http.StatusTooManyRequests:
		return &DeliveryError{Reason: ReasonRateLimited, Retryable: true, StatusCode: status, Message: snippet(body)}
	case http.StatusBadRequest:
		// 400s from the collector are sometimes transient upstream hiccups;
		// locally invalid payloads never reach this point.
		return &DeliveryError{Reason: ReasonBadRequest, Retryable: true, StatusCode: status, Message: snippet(body)}
	default:
		return &DeliveryError{Reason: ReasonAPIError, Retryable: true, StatusCode: status, Message: snippet(body)}
	}
}

// looksLikeEdgeChallenge spots Cloudflare-style interstitials: HTML on a JSON
// endpoint, or the usual challenge markers in the body.
func looksLikeEdgeChallenge(resp *http.Response, body string) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range []string{"just a moment", "cf-chl", "challenge-platform", "attention required", "<html"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200]
	}
	return body
}
