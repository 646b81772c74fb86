package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelhart/shelfmark/internal/config"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESEmailService delivers verification and password-reset emails
// through AWS SES. Implements auth.EmailSender.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	linkBaseURL string
	logger      *slog.Logger
}

func NewAWSSESEmailService(cfg *config.EmailConfig, logger *slog.Logger) (*AWSSESEmailService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(awsCfg),
		fromAddress: cfg.FromAddress,
		linkBaseURL: cfg.LinkBaseURL,
		logger:      logger,
	}, nil
}

func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.linkBaseURL, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Verify your email address</h1>
        <p>Thanks for signing up. To finish creating your account, confirm your email address:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Verify email address</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>This link expires in 15 minutes and can only be used once.</p>
        <p>If you didn't create this account, you can ignore this email.</p>
    </div>
</body>
</html>
`, link, link)

	textBody := fmt.Sprintf(`Verify your email address

Thanks for signing up. To finish creating your account, open this link:

%s

This link expires in 15 minutes and can only be used once.
If you didn't create this account, you can ignore this email.
`, link)

	return s.send(ctx, email, "Verify your email address", htmlBody, textBody)
}

func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.linkBaseURL, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Reset your password</h1>
        <p>Someone requested a password reset for your account. If that was you, choose a new password here:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>This link expires in 15 minutes and can only be used once.</p>
        <p>If you didn't request this, you can ignore this email. Your password will not change.</p>
    </div>
</body>
</html>
`, link, link)

	textBody := fmt.Sprintf(`Reset your password

Someone requested a password reset for your account. If that was you, open this link:

%s

This link expires in 15 minutes and can only be used once.
If you didn't request this, you can ignore this email. Your password will not change.
`, link)

	return s.send(ctx, email, "Reset your password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailService writes tokens to the log instead of sending mail.
// Development only; config.Load rejects it in production.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	s.logger.Info("verification email (log provider)",
		slog.String("email", email),
		slog.String("token", token))
	return nil
}

func (s *LogEmailService) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	s.logger.Info("password reset email (log provider)",
		slog.String("email", email),
		slog.String("token", token))
	return nil
}
