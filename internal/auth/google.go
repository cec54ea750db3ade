package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleClaims is the verified identity returned by both Google flows.
// Subject is Google's stable account id; it never changes even if the user
// renames their account or changes email.
type GoogleClaims struct {
	Subject       string
	Email         string
	GivenName     string
	FamilyName    string
	EmailVerified bool
}

// GoogleProvider implements the two Google sign-in flows the frontend uses:
//
//   - Authorization-code flow: the frontend completes the consent popup and
//     posts us the one-time code. We exchange it server-to-server (the
//     client secret never leaves this process) and fetch the user's profile
//     from the userinfo endpoint.
//   - ID-token flow: the frontend obtains an ID token directly and posts it
//     here. We have Google's tokeninfo endpoint validate the signature and
//     expiry, then check audience and issuer ourselves.
//
// Every upstream call runs against a bounded-timeout HTTP client; the
// caller treats any failure (timeout, non-200, malformed payload)
// uniformly as an authentication failure.
type GoogleProvider struct {
	config       *oauth2.Config
	client       *http.Client
	userinfoURL  string
	tokeninfoURL string
}

const (
	googleUserinfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleTokeninfoURL = "https://oauth2.googleapis.com/tokeninfo"

	googleTimeout = 10 * time.Second
)

// NewGoogleProvider creates a GoogleProvider with the given OAuth client
// credentials. The redirect URL is "postmessage" because the code is
// produced by the frontend's popup flow, not by a server-side redirect.
func NewGoogleProvider(clientID, clientSecret string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "postmessage",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		client:       &http.Client{Timeout: googleTimeout},
		userinfoURL:  googleUserinfoURL,
		tokeninfoURL: googleTokeninfoURL,
	}
}

// ExchangeCode trades an authorization code for the user's Google profile.
//
// Two upstream calls: the code-for-token exchange against Google's token
// endpoint, then a userinfo fetch with the resulting access token.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*GoogleClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, googleTimeout)
	defer cancel()

	// oauth2 picks the HTTP client out of the context; this bounds the
	// token-endpoint call with the same timeout as the userinfo fetch.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)
	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("auth: Google userinfo missing id or email")
	}

	return &GoogleClaims{
		Subject:       info.ID,
		Email:         info.Email,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		EmailVerified: info.VerifiedEmail,
	}, nil
}

// VerifyIDToken validates a Google ID token and returns its claims.
//
// The tokeninfo endpoint checks the token's signature and expiry (expired
// or forged tokens get a non-200 response). Audience and issuer are checked
// here: tokeninfo validates any Google-issued token, so without the aud
// check a token minted for some other application would be accepted.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (*GoogleClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, googleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.tokeninfoURL+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building tokeninfo request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google tokeninfo returned status %d", resp.StatusCode)
	}

	// tokeninfo serializes every claim as a string, booleans included.
	var info struct {
		Iss           string `json:"iss"`
		Aud           string `json:"aud"`
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decoding Google tokeninfo: %w", err)
	}

	if info.Aud != p.config.ClientID {
		return nil, fmt.Errorf("auth: ID token audience mismatch")
	}
	if info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com" {
		return nil, fmt.Errorf("auth: ID token issuer %q not recognised", info.Iss)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("auth: ID token missing sub or email")
	}

	return &GoogleClaims{
		Subject:       info.Sub,
		Email:         info.Email,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		EmailVerified: info.EmailVerified == "true",
	}, nil
}
