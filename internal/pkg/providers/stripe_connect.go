package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

const (
	defaultStripeAuthorizeURL = "https://connect.stripe.com/oauth/authorize"
	defaultStripeTokenURL     = "https://connect.stripe.com/oauth/token"
	defaultStripeConnectScope = "read_only"
)

// StripeConnectClient drives the Stripe Connect OAuth flow: building the
// authorize redirect and exchanging the returned code for account tokens.
type StripeConnectClient struct {
	ClientID    string
	SecretKey   string
	RedirectURI string
	Scope       string

	AuthorizeURL string
	TokenURL     string

	HTTPClient *http.Client
}

type StripeTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	StripeUserID string `json:"stripe_user_id"`
	TokenType    string `json:"token_type"`
	Livemode     bool   `json:"livemode"`
}

func NewStripeConnectClientFromEnv() *StripeConnectClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("STRIPE_CONNECT_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/connect/stripe/callback"
	}

	return &StripeConnectClient{
		ClientID:     strings.TrimSpace(env.GetEnv("STRIPE_CLIENT_ID", "")),
		SecretKey:    strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		RedirectURI:  redirectURI,
		Scope:        strings.TrimSpace(env.GetEnv("STRIPE_CONNECT_SCOPE", defaultStripeConnectScope)),
		AuthorizeURL: strings.TrimSpace(env.GetEnv("STRIPE_AUTHORIZE_URL", defaultStripeAuthorizeURL)),
		TokenURL:     strings.TrimSpace(env.GetEnv("STRIPE_TOKEN_URL", defaultStripeTokenURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *StripeConnectClient) AuthorizeURLWithState(state string) (string, error) {
	if strings.TrimSpace(c.ClientID) == "" {
		return "", errors.New("STRIPE_CLIENT_ID is not configured")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		return "", errors.New("STRIPE_CONNECT_REDIRECT_URI is not configured")
	}
	u, err := url.Parse(c.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid STRIPE_AUTHORIZE_URL: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("scope", c.Scope)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode swaps the callback code for the connected account's tokens.
// The platform secret key authenticates the exchange; the resulting access
// token belongs to the connected account.
func (c *StripeConnectClient) ExchangeCode(ctx context.Context, code string) (*StripeTokenResponse, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	form.Set("client_secret", c.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out StripeTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("stripe token exchange returned empty access_token")
	}
	if strings.TrimSpace(out.StripeUserID) == "" {
		return nil, errors.New("stripe token exchange returned empty stripe_user_id")
	}
	return &out, nil
}
