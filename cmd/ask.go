package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/camilo-ai/camilo/internal/app"
	"github.com/camilo-ai/camilo/internal/config"
	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/log"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

// runAsk answers a single question from the command line, printing tool
// activity as it happens.
func runAsk(logger log.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: camilo ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sessionID := uuid.NewString()
	ch, cancel := a.Broker.Subscribe(sessionID)
	defer cancel()
	go printEvents(ch)

	reply, err := a.Assistant.Respond(ctx, sessionID, []retrieval.Message{
		{Content: question},
	})
	if err != nil {
		return err
	}

	fmt.Println(reply.Text)
	return nil
}

// printEvents writes tool activity to stdout while a reply is generated.
func printEvents(ch <-chan events.Event) {
	for event := range ch {
		switch event.Type {
		case events.TypeToolCall:
			fmt.Printf("→ calling %s...\n", event.ToolName)
		case events.TypeToolError:
			fmt.Printf("→ %s failed: %s\n", event.ToolName, event.Error)
		}
	}
}
