package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/observability/metrics"
	"github.com/yourorg/teamtask/internal/reliability/circuitbreaker"
	"github.com/yourorg/teamtask/internal/reliability/retry"
)

// SMTPNotifier delivers invitation emails over SMTP. Sends retry with
// backoff; a circuit breaker keeps a dead mail host from stalling
// invitation issuance.
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
	sender   string
	baseURL  string
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(host string, port int, username, password, sender, baseURL string, logger *slog.Logger) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("mail circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &SMTPNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		sender:   sender,
		baseURL:  baseURL,
		breaker:  breaker,
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

// SendInvitation emails a registration link embedding the token.
func (n *SMTPNotifier) SendInvitation(ctx context.Context, email, token string, role domain.Role) error {
	if !n.breaker.AllowRequest() {
		metrics.ObserveNotification("circuit_open")
		return fmt.Errorf("mail delivery unavailable: circuit open")
	}

	subject, body := n.invitationMessage(token, role)

	_, err := retry.Do(ctx, n.retryCfg, n.logger, "send_invitation", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.send(email, subject, body)
	})
	if err != nil {
		n.breaker.RecordFailure()
		metrics.ObserveNotification("error")
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	n.breaker.RecordSuccess()
	metrics.ObserveNotification("success")
	n.logger.Info("invitation email sent",
		slog.String("email", email),
		slog.String("role", string(role)),
	)
	return nil
}

func (n *SMTPNotifier) invitationMessage(token string, role domain.Role) (subject, body string) {
	roleText := "Employee"
	if role == domain.RoleManager {
		roleText = "Manager"
	}
	link := fmt.Sprintf("%s/register?token=%s", n.baseURL, token)

	subject = fmt.Sprintf("Invitation to join as %s", roleText)
	body = strings.Join([]string{
		fmt.Sprintf("You have been invited to join the team management system as a %s.", strings.ToLower(roleText)),
		"",
		"Complete your registration here:",
		link,
		"",
		fmt.Sprintf("This invitation will expire in %d days.", domain.InvitationExpiryDays),
		"If you did not expect this invitation, please ignore this email.",
	}, "\r\n")
	return subject, body
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	msg := "From: " + n.sender + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	if err := smtp.SendMail(addr, auth, n.sender, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
