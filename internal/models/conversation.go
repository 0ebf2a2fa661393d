package models

import "time"

// DefaultLanguage is used until a user asks for another one.
const DefaultLanguage = "en"

// Exchange is one user message and the assistant's reply to it.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Conversation is the per-sender assistant state, keyed by the sender's
// WhatsApp address.
type Conversation struct {
	ID                  string     `json:"id"`
	History             []Exchange `json:"history"`
	Language            string     `json:"language"`
	LastInteraction     time.Time  `json:"last_interaction"`
	InjuryConsultations int        `json:"injury_consultations"`
}

func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:              id,
		History:         []Exchange{},
		Language:        DefaultLanguage,
		LastInteraction: now,
	}
}

// Record appends an exchange and keeps only the newest limit entries.
func (c *Conversation) Record(user, assistant string, limit int, now time.Time) {
	c.History = append(c.History, Exchange{User: user, Assistant: assistant})
	if limit > 0 && len(c.History) > limit {
		c.History = append([]Exchange(nil), c.History[len(c.History)-limit:]...)
	}
	c.LastInteraction = now
}

// ClearHistory drops past exchanges but keeps language and counters.
func (c *Conversation) ClearHistory() {
	c.History = []Exchange{}
}

// InjuryStats aggregates injury consultations across conversations.
type InjuryStats struct {
	TotalInjuryConsultations int       `json:"total_injury_consultations"`
	ActiveUsersWithInjuries  int       `json:"active_users_with_injuries"`
	Timestamp                time.Time `json:"timestamp"`
}
