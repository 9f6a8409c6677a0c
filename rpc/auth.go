package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultClockSkew = 2 * time.Minute

// AuthConfig configures bearer token verification. Tokens are HMAC signed and
// carry the caller address in the subject claim.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

var (
	errAuthNotConfigured = errors.New("auth secret not configured")
	errMissingBearer     = errors.New("missing bearer token")
	errInvalidSubject    = errors.New("token subject must be a 0x address")
)

type authenticator struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	return &authenticator{
		secret:   []byte(strings.TrimSpace(cfg.HMACSecret)),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		skew:     skew,
	}
}

// authenticate returns the caller named by the request's bearer token.
func (a *authenticator) authenticate(r *http.Request) (common.Address, error) {
	if a == nil || len(a.secret) == 0 {
		return common.Address{}, errAuthNotConfigured
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return common.Address{}, errMissingBearer
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(a.skew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return common.Address{}, err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return common.Address{}, err
	}
	subject = strings.TrimSpace(subject)
	if !common.IsHexAddress(subject) {
		return common.Address{}, errInvalidSubject
	}
	return common.HexToAddress(subject), nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
