package gateway

import (
	"github.com/golang-jwt/jwt/v5"
)

// Config holds gateway tunables loaded from the environment.
type Config struct {
	JWTSecret string `env:"GATEWAY_JWT_SECRET,required"` // JWTSecret signs and verifies handshake tokens.
}

// Verifier parses signed handshake tokens into credentials.
// Tokens are HS256-signed JWTs carrying user_id and tenant_id claims.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type tokenClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token and returns the credentials it
// carries. Any parse or signature failure is reported as an AuthError so
// callers treat it exactly like a rejected handshake.
func (v *Verifier) Verify(token string) (Credentials, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Credentials{}, &AuthError{Reason: "invalid token"}
	}

	return Credentials{UserID: claims.UserID, TenantID: claims.TenantID}, nil
}

// Sign issues a handshake token for the given credentials. Used by the
// application's session layer and by tests.
func (v *Verifier) Sign(creds Credentials) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID:   creds.UserID,
		TenantID: creds.TenantID,
	})
	return token.SignedString(v.secret)
}
