package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/conf"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// Message 待发送的邮件
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailService SMTP 邮件服务
type EmailService struct {
	cfg *conf.EmailConfig
	log *logger.Logger
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *conf.EmailConfig, log *logger.Logger) *EmailService {
	return &EmailService{
		cfg: cfg,
		log: log,
	}
}

// Send 发送邮件，失败按配置重试
func (s *EmailService) Send(ctx context.Context, msg *Message) error {
	maxRetries := s.cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.send(ctx, msg); err != nil {
			lastErr = err
			s.log.Warn("failed to send email",
				zap.String("to", msg.To),
				zap.Int("attempt", attempt),
				zap.Error(err))

			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryInterval()):
				}
			}
			continue
		}

		s.log.Info("email sent",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
		return nil
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}

func (s *EmailService) retryInterval() time.Duration {
	if s.cfg.RetryInterval > 0 {
		return s.cfg.RetryInterval
	}
	return 3 * time.Second
}

func (s *EmailService) send(ctx context.Context, msg *Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := s.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to dial and send: %w", err)
	}
	return nil
}

func (s *EmailService) buildMessage(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddr); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	m.Subject(msg.Subject)
	if msg.HTMLBody != "" {
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
		}
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}

func (s *EmailService) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.ConnectTimeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.ConnectTimeout))
	}

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client, nil
}
