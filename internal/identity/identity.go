// Package identity verifies inbound bearer tokens and yields the
// authenticated principal. Verification is either local (the provider's JWT
// secret is shared with us) or remote (the provider's userinfo endpoint is
// asked to vouch for the token).
package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"medicamp-api/internal/auth"
)

// Principal is an authenticated caller as attested by the identity provider.
type Principal struct {
	Subject string
	Email   string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// JWTVerifier checks tokens locally against the provider's HS256 secret.
type JWTVerifier struct {
	secret string
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	c, err := auth.ParseToken(token, v.secret)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Subject: c.Subject, Email: c.Email}, nil
}

// RemoteVerifier submits the token to the provider's userinfo endpoint.
// Anything but a 200 with a subject id means the token is no good.
type RemoteVerifier struct {
	userinfoURL string
	apiKey      string
	client      *http.Client
}

func NewRemoteVerifier(userinfoURL, apiKey string) *RemoteVerifier {
	return &RemoteVerifier{
		userinfoURL: userinfoURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return Principal{}, errors.Wrap(err, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	res, err := v.client.Do(req)
	if err != nil {
		return Principal{}, errors.Wrap(err, "userinfo request")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		return Principal{}, auth.ErrBadToken
	}

	var body struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Principal{}, errors.Wrap(err, "decode userinfo response")
	}
	if body.ID == "" {
		return Principal{}, auth.ErrBadToken
	}
	return Principal{Subject: body.ID, Email: body.Email}, nil
}
