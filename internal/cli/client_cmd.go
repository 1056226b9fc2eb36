package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/mqtt"
	"github.com/panduza/pza/pkg/registry"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

// Module names used as client id prefixes
const (
	listenModule  = "pza-listen"
	publishModule = "pza-publish"
)

// connect builds and connects a client from the loaded configuration
func (a *app) connect(ctx context.Context, module string, timeout time.Duration, opts ...registry.Option) (*mqtt.Client, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	client := mqtt.InitClient(mqtt.OptionsFromConfig(module, cfg.Client), opts...)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) newListenCmd() *cobra.Command {
	var (
		workers  int
		prefixed bool
		watch    bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen <topics...>",
		Short: MsgListenShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				return errors.New(errors.ErrInvalidInput, MsgErrWorkersNeeded)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var regOpts []registry.Option
			if workers > 1 {
				pool, err := ants.NewPool(workers)
				if err != nil {
					return errors.Wrap(err, errors.ErrInternal, "failed to create worker pool")
				}
				defer pool.Release()
				regOpts = append(regOpts, registry.WithPool(pool))
			}

			if watch {
				w, err := a.watchConfig()
				if err != nil {
					return err
				}
				defer func() { _ = w.Stop() }()
			}

			client, err := a.connect(ctx, listenModule, timeout, regOpts...)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			var outMu sync.Mutex
			out := cmd.OutOrStdout()
			client.OnMessage(func(ctx context.Context, m mqtt.Message) {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintf(out, MsgMessageFormat, m.Topic, m.Payload)
			})

			topics := args
			if prefixed {
				topics = make([]string, len(args))
				for i, t := range args {
					topics[i] = client.TopicWithPrefix(t)
				}
			}

			if err := client.SubscribeToAll(ctx, topics); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 1, MsgFlagWorkers)
	cmd.Flags().BoolVar(&prefixed, "prefix", false, MsgFlagPrefix)
	cmd.Flags().BoolVar(&watch, "watch", false, MsgFlagWatch)
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, MsgFlagTimeout)
	return cmd
}

func (a *app) newPublishCmd() *cobra.Command {
	var (
		prefixed bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish <topic> <payload>",
		Short: MsgPublishShort,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := a.connect(ctx, publishModule, timeout)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			topic := args[0]
			if prefixed {
				topic = client.TopicWithPrefix(topic)
			}
			return client.Publish(ctx, topic, []byte(args[1]))
		},
	}

	cmd.Flags().BoolVar(&prefixed, "prefix", false, MsgFlagPrefix)
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, MsgFlagTimeout)
	return cmd
}
