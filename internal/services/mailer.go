package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

var ErrMailerNotConfigured = errors.New("email credentials are not configured")

// Mailer sends appointment confirmations to patients.
type Mailer interface {
	SendAppointmentConfirmation(ctx context.Context, patient models.Patient, appt models.Appointment) error
}

type deliverFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers mail over implicit TLS (port 465 style).
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
	deliver  deliverFunc
}

func NewSMTPMailer(host string, port int, sender, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, sender: sender, password: password, deliver: deliverTLS}
}

func (m *SMTPMailer) SendAppointmentConfirmation(ctx context.Context, patient models.Patient, appt models.Appointment) error {
	if m.sender == "" || m.password == "" {
		return ErrMailerNotConfigured
	}
	body := fmt.Sprintf("Hello %s, your appointment (#%d) is scheduled for %s at %s with a %s specialist.",
		patient.Name, appt.ID, appt.PreferredDate, appt.PreferredTime, appt.Specialty)
	msg := composeMessage(m.sender, patient.Email, "Appointment Confirmation", body)

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.sender, m.password, m.host)
	if err := m.deliver(ctx, addr, auth, m.sender, []string{patient.Email}, msg); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

func composeMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func deliverTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
