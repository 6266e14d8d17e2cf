package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	messages []*Message
	err      error
}

func (s *fakeSender) Send(_ context.Context, msg *Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func TestSendVerificationRequest(t *testing.T) {
	sender := &fakeSender{}
	mailer := NewVerificationMailer(sender, "http://localhost:8080/")

	err := mailer.SendVerificationRequest(context.Background(), "verifier@example.com", "contract.pdf", "token-123")
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]

	assert.Equal(t, "verifier@example.com", msg.To)
	assert.Equal(t, "File Verification Request", msg.Subject)

	// 链接不带双斜杠，且包含 token
	link := "http://localhost:8080/api/v1/files/verify/token-123"
	assert.Contains(t, msg.HTMLBody, link)
	assert.Contains(t, msg.TextBody, link)
	assert.Contains(t, msg.TextBody, "contract.pdf")
}

func TestSendVerificationRequestEscapesFilename(t *testing.T) {
	sender := &fakeSender{}
	mailer := NewVerificationMailer(sender, "http://localhost:8080")

	err := mailer.SendVerificationRequest(context.Background(), "v@example.com", `<script>alert("x")</script>.txt`, "tok")
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	assert.False(t, strings.Contains(sender.messages[0].HTMLBody, "<script>"),
		"filename must be escaped in html body")
}

func TestSendVerificationRequestPropagatesError(t *testing.T) {
	sender := &fakeSender{err: assert.AnError}
	mailer := NewVerificationMailer(sender, "http://localhost:8080")

	err := mailer.SendVerificationRequest(context.Background(), "v@example.com", "doc.txt", "tok")
	assert.Error(t, err)
}
