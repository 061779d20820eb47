package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// LogMailer writes lifecycle emails to the log instead of delivering
// them. Actual delivery belongs to the platform notification sender;
// this keeps the flows exercisable in environments without one.
type LogMailer struct {
	Logger  *slog.Logger
	BaseURL string
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, to, rawToken string) error {
	link := fmt.Sprintf("%s/v1/auth/verify-email?token=%s", m.BaseURL, url.QueryEscape(rawToken))
	m.Logger.Info("verification email", "to", to, "link", link)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, to, rawToken string) error {
	m.Logger.Info("password reset email", "to", to, "token", rawToken)
	return nil
}
