package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// newTestGoogleProvider points every Google endpoint at the given test
// server so no test ever reaches the network.
func newTestGoogleProvider(srvURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
			RedirectURL:  "postmessage",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srvURL + "/auth",
				TokenURL: srvURL + "/token",
			},
		},
		client:       &http.Client{Timeout: 2 * time.Second},
		userinfoURL:  srvURL + "/userinfo",
		tokeninfoURL: srvURL + "/tokeninfo",
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"upstream-token","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if got := r.Header.Get("Authorization"); got != "Bearer upstream-token" {
				t.Errorf("userinfo Authorization = %q, want bearer access token", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"G123","email":"bob@example.com","verified_email":true,"given_name":"Bob","family_name":"Builder"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	claims, err := p.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if claims.Subject != "G123" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "G123")
	}
	if claims.Email != "bob@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "bob@example.com")
	}
	if claims.GivenName != "Bob" || claims.FamilyName != "Builder" {
		t.Errorf("name = %q %q, want Bob Builder", claims.GivenName, claims.FamilyName)
	}
	if !claims.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
}

func TestExchangeCode_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	if _, err := p.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("ExchangeCode() succeeded against a failing token endpoint")
	}
}

func TestVerifyIDToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokeninfo" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("id_token"); got != "the-id-token" {
			t.Errorf("id_token query = %q, want %q", got, "the-id-token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"iss":"accounts.google.com",
			"aud":"test-client-id",
			"sub":"G456",
			"email":"carol@example.com",
			"email_verified":"true",
			"given_name":"Carol",
			"family_name":"Jones"
		}`))
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	claims, err := p.VerifyIDToken(context.Background(), "the-id-token")
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}

	if claims.Subject != "G456" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "G456")
	}
	if !claims.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
}

func TestVerifyIDToken_WrongAudience(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"iss":"accounts.google.com","aud":"someone-elses-app","sub":"G1","email":"x@y.com","email_verified":"true"}`))
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	if _, err := p.VerifyIDToken(context.Background(), "tok"); err == nil {
		t.Error("VerifyIDToken() accepted a token minted for another application")
	}
}

func TestVerifyIDToken_BadIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"iss":"evil.example.com","aud":"test-client-id","sub":"G1","email":"x@y.com","email_verified":"true"}`))
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	if _, err := p.VerifyIDToken(context.Background(), "tok"); err == nil {
		t.Error("VerifyIDToken() accepted a token from an unrecognised issuer")
	}
}

func TestVerifyIDToken_InvalidToken(t *testing.T) {
	// tokeninfo answers non-200 for expired or forged tokens.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestGoogleProvider(srv.URL)
	if _, err := p.VerifyIDToken(context.Background(), "expired"); err == nil {
		t.Error("VerifyIDToken() accepted a token tokeninfo rejected")
	}
}
