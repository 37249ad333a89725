package cmd

import (
	"fmt"
	"log/slog"

	"github.com/PFerreria/Concilium/pkg/channels/gochannel"
	"github.com/PFerreria/Concilium/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus creates the job event bus for provider. Only the in-process
// gochannel provider is supported; "" selects it.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "gochannel":
		pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(logger), gochannel.DefaultBuffer)

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
