// ABOUTME: Activation-code delivery contract and log-backed implementation
// ABOUTME: Real delivery (email) is an external collaborator outside core scope

package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers an activation code to a recipient out of band.
// Delivery is best-effort: callers log failures and never roll back the
// token creation that triggered the send.
type Notifier interface {
	Send(ctx context.Context, recipientEmail, activationCode string) error
}

// LogNotifier writes the code to the log instead of delivering it.
// Useful for development and as the default until a mail collaborator is
// wired in.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default().With("component", "notify")}
}

// Send logs the activation code for the recipient.
func (n *LogNotifier) Send(ctx context.Context, recipientEmail, activationCode string) error {
	n.logger.Info("activation code issued", "recipient", recipientEmail, "code", activationCode)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
