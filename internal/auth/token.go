// Package auth resolves the caller's session from the bearer token the
// storefront forwards. Tokens are issued by the commerce backend.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// TokenValidator validates the time-based claims and algorithm of a token.
type TokenValidator struct {
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks algorithm, expiry and not-before against now.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	return jwt.Validate(tok, options...)
}

// Resolver maps bearer tokens to session keys. With a Secret, tokens must be
// HS256-signed with it; without one the token is only decoded and the backend
// stays the authority on its validity.
type Resolver struct {
	Secret    []byte
	Validator TokenValidator
	now       func() time.Time
}

// NewResolver builds a resolver. An empty secret disables signature checks.
func NewResolver(secret string) *Resolver {
	r := &Resolver{
		Validator: TokenValidator{ClockSkew: 30 * time.Second},
		now:       time.Now,
	}
	if secret != "" {
		r.Secret = []byte(secret)
		r.Validator.Algorithm = jwa.HS256
	}
	return r
}

// Session returns the session key for token: the subject claim when present,
// otherwise a hash of the token itself.
func (r *Resolver) Session(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.NewAppError(common.CodeUnauthorized, "missing token", http.StatusUnauthorized, nil)
	}
	if len(r.Secret) == 0 {
		return r.unverified(token)
	}
	algorithm, err := tokenAlgorithm(token)
	if err != nil {
		return "", invalidToken(err)
	}
	if algorithm != r.Validator.Algorithm {
		return "", invalidToken(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(algorithm, r.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", invalidToken(err)
	}
	if err := r.Validator.Validate(parsed, algorithm, r.clock()); err != nil {
		return "", invalidToken(err)
	}
	return subjectOrHash(parsed.Subject(), token), nil
}

func (r *Resolver) unverified(token string) (string, error) {
	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		// Opaque tokens are passed through; the backend decides.
		return common.Digest(token), nil
	}
	if err := jwt.Validate(parsed, jwt.WithClock(jwt.ClockFunc(r.clock)), jwt.WithAcceptableSkew(r.Validator.ClockSkew)); err != nil {
		return "", invalidToken(err)
	}
	return subjectOrHash(parsed.Subject(), token), nil
}

func (r *Resolver) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func subjectOrHash(subject, token string) string {
	if subject = strings.TrimSpace(subject); subject != "" {
		return subject
	}
	return common.Digest(token)
}

func invalidToken(err error) error {
	return common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token has no usable algorithm")
	}
	return alg, nil
}
