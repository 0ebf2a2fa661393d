package livekit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Defaults applied when /getToken omits a parameter.
const (
	DefaultParticipantName = "my name"
	DefaultLanguage        = "en"
	maxRoomNameAttempts    = 10
)

// TokenRequest holds the /getToken query parameters.
type TokenRequest struct {
	Name     string
	Language string
	Room     string
}

type Service struct {
	issuer *TokenIssuer
	rooms  RoomLister
	newID  func() string
	logger *logrus.Logger
}

func NewService(issuer *TokenIssuer, rooms RoomLister, logger *logrus.Logger) *Service {
	return &Service{
		issuer: issuer,
		rooms:  rooms,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Token returns a participant token and the room it grants. A fresh room
// name is generated when req.Room is empty.
func (s *Service) Token(ctx context.Context, req TokenRequest) (token string, room string, err error) {
	if req.Name == "" {
		req.Name = DefaultParticipantName
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	room = req.Room
	if room == "" {
		room, err = s.GenerateRoomName(ctx)
		if err != nil {
			return "", "", err
		}
	}
	token, err = s.issuer.ParticipantToken(req.Name, req.Language, room)
	if err != nil {
		return "", "", err
	}
	s.logger.WithFields(logrus.Fields{"room": room, "language": req.Language}).Info("Issued LiveKit token")
	return token, room, nil
}

// GenerateRoomName returns "room-" plus eight hex characters, retrying until
// the name is not an existing room.
func (s *Service) GenerateRoomName(ctx context.Context) (string, error) {
	existing, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list rooms: %w", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[name] = struct{}{}
	}
	for i := 0; i < maxRoomNameAttempts; i++ {
		name := "room-" + s.newID()[:8]
		if _, ok := taken[name]; !ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free room name after %d attempts", maxRoomNameAttempts)
}
