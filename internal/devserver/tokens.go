package devserver

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type tokenClaims struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"es_admin"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(secret []byte, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, clock: clk}
}

func (t *TokenIssuer) Issue(user models.User) (string, error) {
	now := t.clock.Now()
	claims := tokenClaims{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Parse(raw string) (tokenClaims, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.clock.Now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return tokenClaims{}, ErrInvalidToken
	}
	return claims, nil
}
