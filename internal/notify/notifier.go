// Package notify delivers position risk alerts through one or more channels
// (Telegram, Discord, ...). Alerts carry the position id and the risk level
// as severity; a minimum-severity filter keeps low-grade noise away from
// operators.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to all registered senders. Alerts below the
// configured minimum severity are dropped.
type Notifier struct {
	senders     []Sender
	minSeverity domain.RiskLevel
	logger      *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders. Alerts
// with a severity below minSeverity are filtered; an empty minSeverity
// allows everything through.
func NewNotifier(senders []Sender, minSeverity domain.RiskLevel, logger *slog.Logger) *Notifier {
	if minSeverity == "" {
		minSeverity = domain.RiskSafe
	}
	return &Notifier{
		senders:     senders,
		minSeverity: minSeverity,
		logger:      logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an alert for the given position. A single sender failure
// does not prevent delivery to the remaining senders; failures are collected
// into one combined error.
func (n *Notifier) Notify(ctx context.Context, positionID string, severity domain.RiskLevel, message string) error {
	if !severity.AtLeast(n.minSeverity) {
		n.logger.DebugContext(ctx, "alert below severity floor",
			slog.String("position_id", positionID),
			slog.String("severity", string(severity)),
		)
		return nil
	}

	if len(n.senders) == 0 {
		return nil
	}

	title := fmt.Sprintf("[%s] position %s", strings.ToUpper(string(severity)), positionID)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("position_id", positionID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("position_id", positionID),
				slog.String("severity", string(severity)),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Compile-time interface check.
var _ domain.AlertDispatcher = (*Notifier)(nil)
