package mail

import (
	"context"
	"log/slog"
)

// DevMailer logs the code instead of delivering it. Used when MAIL_ENABLED
// is false, mirroring how verification links are surfaced in development.
type DevMailer struct {
	logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{logger: logger}
}

func (m *DevMailer) SendOTP(ctx context.Context, msg OTPMessage) error {
	m.logger.InfoContext(ctx, "otp code issued",
		"to", msg.To,
		"purpose", string(msg.Purpose),
		"code", msg.Code,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
