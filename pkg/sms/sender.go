// Package sms delivers verification codes to phones.
package sms

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Message is a single text to deliver.
type Message struct {
	Phone string
	Body  string
}

// Sender delivers text messages through a provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of a provider. It is the
// development adapter; production deployments plug in a provider Sender.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a logging sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message body together with the masked phone.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.Phone == "" {
		return fmt.Errorf("sms phone is required")
	}
	s.logger.Info("sms dispatched", zap.String("phone", MaskPhone(msg.Phone)), zap.String("body", msg.Body))
	return nil
}

// VerificationText renders the body of a login code message.
func VerificationText(code string) string {
	return fmt.Sprintf("Your study group login code: %s", code)
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 {
			masked[i] = '*'
			continue
		}
		masked[i] = phone[i]
	}
	return string(masked)
}
