package utils // package utils provides the password codec and the token service

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

    "github.com/iliyamo/storefront-auth/internal/model"
)

var (
    // ErrInvalidToken covers every verification failure other than expiry:
    // bad signature, malformed input, unexpected algorithm, missing subject.
    ErrInvalidToken = errors.New("invalid token")
    // ErrTokenExpired is returned when the current time is at or past exp.
    ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried by every token.  Session tokens carry a
// role; verification tokens leave it empty.
type Claims struct {
    Role model.Role `json:"role,omitempty"`
    jwt.RegisteredClaims
}

// IssuedToken is a signed JWT along with its expiry.
type IssuedToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenService signs and verifies HS256 tokens with a process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
    secret []byte
    now    func() time.Time
}

// NewTokenService builds a service around secret.
func NewTokenService(secret string) *TokenService {
    return &TokenService{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
    return &TokenService{secret: s.secret, now: now}
}

// Issue builds and signs a token for subject that expires ttl from now.
// An empty role produces an id-only token.
func (s *TokenService) Issue(subject string, role model.Role, ttl time.Duration) (IssuedToken, error) {
    now := s.now().UTC()
    exp := now.Add(ttl)
    claims := Claims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString(s.secret)
    if err != nil {
        return IssuedToken{}, err
    }
    return IssuedToken{Token: signed, Exp: exp}, nil
}

// Verify parses raw, checks its signature and expiry and returns the
// decoded claims.  The error is either ErrTokenExpired or ErrInvalidToken.
func (s *TokenService) Verify(raw string) (Claims, error) {
    var claims Claims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        // Reject anything that is not HMAC before handing out the key.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return s.secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
        // the last signature character has spare bits; lenient decoding
        // would accept several spellings of the same MAC
        jwt.WithStrictDecoding(),
        jwt.WithTimeFunc(s.now),
    )
    if err != nil {
        // The signature is checked before the claims, so an expired
        // error here means the token itself was authentic.
        if errors.Is(err, jwt.ErrTokenExpired) {
            return Claims{}, ErrTokenExpired
        }
        return Claims{}, ErrInvalidToken
    }
    if !tok.Valid || claims.Subject == "" {
        return Claims{}, ErrInvalidToken
    }
    return claims, nil
}
