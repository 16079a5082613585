package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestStripeConnectAuthorizeURLWithState(t *testing.T) {
	c := &StripeConnectClient{
		ClientID:     "ca_test",
		RedirectURI:  "https://pulseboard.example/connect/stripe/callback",
		Scope:        "read_only",
		AuthorizeURL: defaultStripeAuthorizeURL,
	}

	raw, err := c.AuthorizeURLWithState("signed-state-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid authorize URL: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Fatalf("expected response_type=code, got %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "ca_test" {
		t.Fatalf("expected client_id=ca_test, got %q", q.Get("client_id"))
	}
	if q.Get("scope") != "read_only" {
		t.Fatalf("expected scope=read_only, got %q", q.Get("scope"))
	}
	if q.Get("state") != "signed-state-token" {
		t.Fatalf("expected state to round-trip, got %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != c.RedirectURI {
		t.Fatalf("expected redirect_uri %q, got %q", c.RedirectURI, q.Get("redirect_uri"))
	}
}

func TestStripeConnectAuthorizeURLRequiresConfig(t *testing.T) {
	c := &StripeConnectClient{AuthorizeURL: defaultStripeAuthorizeURL}
	if _, err := c.AuthorizeURLWithState("s"); err == nil {
		t.Fatalf("expected error without client id")
	}

	c.ClientID = "ca_test"
	if _, err := c.AuthorizeURLWithState("s"); err == nil {
		t.Fatalf("expected error without redirect uri")
	}
}

func TestStripeConnectExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("expected grant_type=authorization_code, got %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") != "ac_123" {
			t.Errorf("expected code=ac_123, got %q", r.PostForm.Get("code"))
		}
		if r.PostForm.Get("client_secret") != "sk_test" {
			t.Errorf("expected client_secret to be the platform key, got %q", r.PostForm.Get("client_secret"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"access_token": "sk_conn_token",
			"refresh_token": "rt_conn",
			"scope": "read_only",
			"stripe_user_id": "acct_42",
			"token_type": "bearer",
			"livemode": false
		}`)
	}))
	defer srv.Close()

	c := &StripeConnectClient{
		ClientID:   "ca_test",
		SecretKey:  "sk_test",
		TokenURL:   srv.URL,
		HTTPClient: srv.Client(),
	}

	tok, err := c.ExchangeCode(context.Background(), "ac_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "sk_conn_token" {
		t.Fatalf("unexpected access token: %q", tok.AccessToken)
	}
	if tok.StripeUserID != "acct_42" {
		t.Fatalf("unexpected stripe_user_id: %q", tok.StripeUserID)
	}
	if tok.RefreshToken != "rt_conn" {
		t.Fatalf("unexpected refresh token: %q", tok.RefreshToken)
	}
}

func TestStripeConnectExchangeCodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Authorization code already used"}`)
	}))
	defer srv.Close()

	c := &StripeConnectClient{
		ClientID:   "ca_test",
		SecretKey:  "sk_test",
		TokenURL:   srv.URL,
		HTTPClient: srv.Client(),
	}

	if _, err := c.ExchangeCode(context.Background(), "ac_used"); err == nil {
		t.Fatalf("expected exchange failure to surface")
	}
}

func TestStripeConnectExchangeCodeRequiresInput(t *testing.T) {
	c := &StripeConnectClient{ClientID: "ca_test"}
	if _, err := c.ExchangeCode(context.Background(), "ac_1"); err == nil {
		t.Fatalf("expected error without secret key")
	}

	c.SecretKey = "sk_test"
	if _, err := c.ExchangeCode(context.Background(), " "); err == nil {
		t.Fatalf("expected error without code")
	}
}
