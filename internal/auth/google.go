package auth

import (
	"errors"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

var ErrGoogleNotConfigured = errors.New("google sign-in is not configured")

// GoogleIdentity is the subset of ID token claims used to sign a user in.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier checks a Google ID token and returns its identity.
type GoogleVerifier interface {
	Verify(idToken string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	clientID string
}

// NewGoogleVerifier returns a verifier accepting tokens issued for clientID.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID}
}

func (g *googleVerifier) Verify(idToken string) (*GoogleIdentity, error) {
	if g.clientID == "" {
		return nil, ErrGoogleNotConfigured
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("decode id token: %w", err)
	}
	return &GoogleIdentity{
		Subject:       claimSet.Sub,
		Email:         claimSet.Email,
		EmailVerified: claimSet.EmailVerified,
		Name:          claimSet.Name,
	}, nil
}
