package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/teamtask/internal/domain"
)

// LogNotifier writes registration links to the log instead of sending mail.
// Used in development via the EMAIL_DRY_RUN flag.
type LogNotifier struct {
	baseURL string
	logger  *slog.Logger
}

// NewLogNotifier creates a dry-run notifier
func NewLogNotifier(baseURL string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{baseURL: baseURL, logger: logger}
}

func (n *LogNotifier) SendInvitation(ctx context.Context, email, token string, role domain.Role) error {
	n.logger.Info("invitation email dry run",
		slog.String("email", email),
		slog.String("role", string(role)),
		slog.String("link", fmt.Sprintf("%s/register?token=%s", n.baseURL, token)),
	)
	return nil
}
