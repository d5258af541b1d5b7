package notify

import (
	"context"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
)

// LogNotifier writes outcomes to the structured log. It stands in when no
// broker is configured.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Handle(_ context.Context, evt model.RoundEvent) error {
	if !evt.Type.IsOutcome() {
		return nil
	}
	msg := outcomeOf(evt)
	args := []any{
		"round_id", msg.RoundID,
		"lot", msg.Lot,
		"outcome", msg.Outcome,
	}
	if msg.Price != nil {
		args = append(args, "winner_id", msg.WinnerID, "price", msg.Price.String())
	}
	logger.Info("round outcome", args...)
	return nil
}
