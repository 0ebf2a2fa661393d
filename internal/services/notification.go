package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

// telegramSender is the part of *bot.Bot the notifier needs.
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// StaffNotifier posts alerts to the hospital staff Telegram chat. Without a
// bot token or chat id every method is a no-op.
type StaffNotifier struct {
	sender telegramSender
	chatID int64
	logger *logrus.Logger
}

func NewStaffNotifier(botToken string, chatID int64, logger *logrus.Logger) *StaffNotifier {
	n := &StaffNotifier{chatID: chatID, logger: logger}
	if botToken == "" || chatID == 0 {
		return n
	}
	b, err := bot.New(botToken, bot.WithSkipGetMe())
	if err != nil {
		logger.WithError(err).Warn("Telegram bot unavailable, staff alerts disabled")
		return n
	}
	n.sender = b
	return n
}

// Enabled reports whether alerts are actually delivered.
func (n *StaffNotifier) Enabled() bool {
	return n.sender != nil
}

// NotifyInjuryConsultation alerts staff that a patient described an injury.
func (n *StaffNotifier) NotifyInjuryConsultation(ctx context.Context, sender string, hasImage bool) error {
	var sb strings.Builder
	sb.WriteString("🩹 Injury consultation\n")
	fmt.Fprintf(&sb, "From: %s\n", strings.TrimPrefix(sender, "whatsapp:"))
	if hasImage {
		sb.WriteString("Photo attached: yes")
	} else {
		sb.WriteString("Photo attached: no")
	}
	return n.send(ctx, sb.String())
}

// NotifyAppointmentBooked alerts staff about a new booking.
func (n *StaffNotifier) NotifyAppointmentBooked(ctx context.Context, patient models.Patient, appt models.Appointment) error {
	msg := fmt.Sprintf("📅 Appointment #%d booked\nPatient: %s (%s)\nDoctor: %s (%s)\nWhen: %s %s",
		appt.ID, patient.Name, patient.Phone, appt.DoctorName, appt.Specialty, appt.PreferredDate, appt.PreferredTime)
	return n.send(ctx, msg)
}

func (n *StaffNotifier) send(ctx context.Context, text string) error {
	if n.sender == nil {
		return nil
	}
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	n.logger.WithField("chat_id", n.chatID).Debug("Staff alert sent")
	return nil
}
