package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// VerificationMailer 验证请求邮件发送器
// 实现文件模块的 NotificationGateway 接口
type VerificationMailer struct {
	sender  Sender
	baseURL string
}

// NewVerificationMailer 创建验证邮件发送器
func NewVerificationMailer(sender Sender, publicBaseURL string) biz.NotificationGateway {
	return &VerificationMailer{
		sender:  sender,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// SendVerificationRequest 发送验证请求邮件
func (m *VerificationMailer) SendVerificationRequest(ctx context.Context, recipient, filename, token string) error {
	link := fmt.Sprintf("%s/api/v1/files/verify/%s", m.baseURL, token)
	safeName := html.EscapeString(filename)

	htmlBody := fmt.Sprintf(`
<p>You have been asked to verify the file <strong>%s</strong>.</p>
<p>Click the link below to confirm the verification:</p>
<p><a href="%s">%s</a></p>
<p>The link can only be used once. If you did not expect this request, you can ignore this email.</p>
`, safeName, link, link)

	textBody := fmt.Sprintf(
		"You have been asked to verify the file %q.\n\nOpen the following link to confirm the verification:\n%s\n\nThe link can only be used once. If you did not expect this request, you can ignore this email.\n",
		filename, link)

	return m.sender.Send(ctx, &Message{
		To:       recipient,
		Subject:  "File Verification Request",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}
