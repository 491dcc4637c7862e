package llm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const gigaChatTokenMargin = time.Minute

type GigaChatOptions struct {
	AuthKey  string
	Scope    string
	AuthURL  string
	BaseURL  string
	Model    string
	Insecure bool
}

// NewGigaChat builds an OpenAI-compatible client whose requests carry a short-lived
// OAuth token obtained from the Sber NGW endpoint.
func NewGigaChat(opts GigaChatOptions) *OpenAICompat {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Russian CA chain is not in system roots
	}
	source := &gigaChatTokenSource{
		authURL: opts.AuthURL,
		authKey: opts.AuthKey,
		scope:   opts.Scope,
		client:  &http.Client{Transport: base, Timeout: 30 * time.Second},
		now:     time.Now,
	}
	return NewOpenAICompat(OpenAIOptions{
		Name:    "gigachat",
		BaseURL: opts.BaseURL,
		Model:   opts.Model,
		HTTPClient: &http.Client{
			Transport: &bearerTransport{source: source, base: base},
			Timeout:   2 * time.Minute,
		},
	})
}

type gigaChatTokenSource struct {
	mu      sync.Mutex
	authURL string
	authKey string
	scope   string
	client  *http.Client
	now     func() time.Time

	token   string
	expires time.Time
}

func (s *gigaChatTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(gigaChatTokenMargin).Before(s.expires) {
		return s.token, nil
	}

	form := url.Values{"scope": {s.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+s.authKey)
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gigachat oauth: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gigachat oauth: status=%d body=%s", resp.StatusCode, body)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gigachat oauth: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("gigachat oauth: empty token")
	}
	s.token = parsed.AccessToken
	s.expires = time.UnixMilli(parsed.ExpiresAt)
	return s.token, nil
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type bearerTransport struct {
	source tokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token(req.Context())
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}
