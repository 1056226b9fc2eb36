package cli

import (
	"fmt"
	"sort"

	"github.com/panduza/pza/pkg/broker"
	"github.com/panduza/pza/pkg/config"
	"github.com/panduza/pza/pkg/logging"
	"github.com/spf13/cobra"
)

func (a *app) newBrokerCmd() *cobra.Command {
	var (
		meduse bool
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "broker",
		Short: MsgBrokerShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			brokerCfg := cfg.Broker
			if meduse {
				brokerCfg = config.MeduseBrokerConfig()
			}

			if watch {
				w, err := a.watchConfig()
				if err != nil {
					return err
				}
				defer func() { _ = w.Stop() }()
			}

			b, err := broker.Start(brokerCfg)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			addrs := b.Addrs()
			ids := make([]string, 0, len(addrs))
			for id := range addrs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), MsgBrokerAddr, id, addrs[id])
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			<-ctx.Done()

			logger := logging.GetLogger(logging.ComponentBroker)
			logger.Info().Msg("Shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&meduse, "meduse", false, MsgFlagMeduse)
	cmd.Flags().BoolVar(&watch, "watch", false, MsgFlagWatch)
	return cmd
}
