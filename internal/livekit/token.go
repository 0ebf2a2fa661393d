// Package livekit issues LiveKit access tokens and picks unused room names.
package livekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when the LiveKit API key or secret is missing.
var ErrNotConfigured = errors.New("livekit credentials are not configured")

// VideoGrant mirrors the LiveKit "video" claim.
type VideoGrant struct {
	RoomJoin bool   `json:"roomJoin,omitempty"`
	RoomList bool   `json:"roomList,omitempty"`
	Room     string `json:"room,omitempty"`
}

// AccessClaims are the claims LiveKit expects in an access token. The API key
// is the issuer and the participant identity is the subject.
type AccessClaims struct {
	Name     string      `json:"name,omitempty"`
	Metadata string      `json:"metadata,omitempty"`
	Video    *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenIssuer{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *TokenIssuer) configured() bool {
	return i.apiKey != "" && len(i.secret) > 0
}

// ParticipantToken grants identity the right to join room. The language is
// carried as participant metadata for the voice agent.
func (i *TokenIssuer) ParticipantToken(identity, language, room string) (string, error) {
	return i.sign(AccessClaims{
		Name:     identity,
		Metadata: language,
		Video:    &VideoGrant{RoomJoin: true, Room: room},
	}, identity)
}

func (i *TokenIssuer) roomListToken() (string, error) {
	return i.sign(AccessClaims{Video: &VideoGrant{RoomList: true}}, "")
}

func (i *TokenIssuer) sign(claims AccessClaims, subject string) (string, error) {
	if !i.configured() {
		return "", ErrNotConfigured
	}
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    i.apiKey,
		Subject:   subject,
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign livekit token: %w", err)
	}
	return signed, nil
}

// Parse validates a token issued with the same secret.
func (i *TokenIssuer) Parse(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.apiKey), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
