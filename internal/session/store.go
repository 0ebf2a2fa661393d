// Package session keeps per-sender assistant conversations in memory or in
// Redis.
package session

import (
	"context"
	"time"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

// Store persists conversations. Get never fails for an unknown id; it
// returns a fresh conversation that is stored only once saved.
type Store interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Save(ctx context.Context, conv *models.Conversation) error
	Reset(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context) ([]*models.Conversation, error)
}

// InjuryStats sums injury consultations over every stored conversation.
func InjuryStats(ctx context.Context, store Store, now time.Time) (models.InjuryStats, error) {
	convs, err := store.List(ctx)
	if err != nil {
		return models.InjuryStats{}, err
	}
	stats := models.InjuryStats{Timestamp: now}
	for _, c := range convs {
		if c.InjuryConsultations > 0 {
			stats.TotalInjuryConsultations += c.InjuryConsultations
			stats.ActiveUsersWithInjuries++
		}
	}
	return stats, nil
}

func clone(c *models.Conversation) *models.Conversation {
	out := *c
	out.History = append([]models.Exchange{}, c.History...)
	return &out
}
