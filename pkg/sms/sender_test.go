package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSenderSend(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	err := sender.Send(context.Background(), Message{Phone: "79990001122", Body: VerificationText("123456")})
	assert.NoError(t, err)
	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "*******1122", entries[0].ContextMap()["phone"])
		assert.Contains(t, entries[0].ContextMap()["body"], "123456")
	}
}

func TestLogSenderRequiresPhone(t *testing.T) {
	sender := NewLogSender(nil)
	assert.Error(t, sender.Send(context.Background(), Message{Body: "x"}))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "****", MaskPhone("123"))
	assert.Equal(t, "**3456", MaskPhone("123456"))
}
