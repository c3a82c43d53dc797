package notification

import (
	"context"
	"log/slog"
)

// MockNotifier logs instead of delivering. For local development without an
// SMS gateway or SMTP server; the code itself is never logged.
type MockNotifier struct {
	Channel string
	Logger  *slog.Logger
}

// Send logs the delivery and succeeds.
func (n *MockNotifier) Send(ctx context.Context, destination, _ string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mock verification delivery", "channel", n.Channel, "destination", destination)
	return nil
}
