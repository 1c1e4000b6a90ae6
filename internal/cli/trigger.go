package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"github.com/spf13/cobra"
)

const publishTimeout = 10 * time.Second

func newTriggerCmd(factory publisherFactory) *cobra.Command {
	var (
		payloadFile   string
		rabbitURL     string
		id            string
		correlationID string
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "trigger <kind> [payload-json]",
		Short: "Publish one trigger message",
		Long:  "Publish one trigger message to its work queue. The payload is read from the argument, --payload-file, or stdin when the argument is \"-\".",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseTriggerKind(args[0])
			if err != nil {
				return err
			}

			raw, err := readPayload(cmd, args, payloadFile)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("payload is not valid JSON")
			}

			if strings.TrimSpace(id) == "" {
				id = uuid.NewString()
			}
			msg := queue.TriggerMessage{
				ID:            id,
				CorrelationID: correlationID,
				Kind:          kind,
				Payload:       json.RawMessage(raw),
			}
			if err := msg.Validate(); err != nil {
				return err
			}

			queueName := queue.QueueName(kind)
			if dryRun {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"queue": queueName, "message": msg})
			}

			if strings.TrimSpace(rabbitURL) == "" {
				return fmt.Errorf("rabbitmq url is required (--rabbitmq-url or RABBITMQ_URL)")
			}

			publisher, err := factory(rabbitURL)
			if err != nil {
				return fmt.Errorf("connecting to rabbitmq: %w", err)
			}
			defer publisher.Close() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
			defer cancel()

			if err := publisher.Publish(ctx, msg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", msg.ID, queueName)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "read the JSON payload from a file")
	cmd.Flags().StringVar(&rabbitURL, "rabbitmq-url", os.Getenv("RABBITMQ_URL"), "broker url")
	cmd.Flags().StringVar(&id, "id", "", "trigger id (random uuid when empty)")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id attached to worker logs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message instead of publishing it")

	return cmd
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List trigger kinds and their queues",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, kind := range domain.TriggerKinds {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", kind, queue.QueueName(kind))
			}
		},
	}
}

func readPayload(cmd *cobra.Command, args []string, payloadFile string) ([]byte, error) {
	switch {
	case len(args) == 2 && payloadFile != "":
		return nil, fmt.Errorf("pass the payload as an argument or --payload-file, not both")
	case len(args) == 2 && args[1] == "-":
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return raw, nil
	case len(args) == 2:
		return []byte(args[1]), nil
	case payloadFile != "":
		raw, err := os.ReadFile(payloadFile)
		if err != nil {
			return nil, fmt.Errorf("reading payload file: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("payload is required")
	}
}
