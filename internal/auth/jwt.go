package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var ErrEmptyClient = errors.New("client name is required")

// Claims identify the game server a token was issued to.
type Claims struct {
	Client string `json:"cid"`
	jwt.RegisteredClaims
}

// Service checks the shared API secret and issues bearer tokens signed with
// a key derived from it, so the raw secret never signs anything.
type Service struct {
	secret []byte
	key    []byte
	now    func() time.Time
}

func NewService(secret string) *Service {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("parkour-leaderboard token key"))
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails past 255 blocks
		panic(err)
	}
	return &Service{secret: []byte(secret), key: key, now: time.Now}
}

// CheckSecret compares v with the shared secret in constant time.
func (s *Service) CheckSecret(v string) bool {
	if v == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v), s.secret) == 1
}

func (s *Service) Sign(client string, ttl time.Duration) (string, time.Time, error) {
	client = strings.TrimSpace(client)
	if client == "" {
		return "", time.Time{}, ErrEmptyClient
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Service) Verify(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Client == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
