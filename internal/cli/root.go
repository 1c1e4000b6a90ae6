package cli

import (
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"github.com/spf13/cobra"
)

// publisherFactory opens a publisher for the given broker url.
type publisherFactory func(url string) (queue.Publisher, error)

func rabbitPublisher(url string) (queue.Publisher, error) {
	client, err := queue.NewRabbitMQ(url)
	if err != nil {
		return nil, err
	}
	return queue.NewRabbitMQPublisher(client), nil
}

func newRootCmd(factory publisherFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "emit",
		Short:         "Publish store-change triggers to the push fan-out worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newTriggerCmd(factory))
	cmd.AddCommand(newKindsCmd())
	return cmd
}

func Execute() error {
	return newRootCmd(rabbitPublisher).Execute()
}
