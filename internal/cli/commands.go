package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panduza/pza/internal/version"
	"github.com/panduza/pza/pkg/config"
	"github.com/panduza/pza/pkg/logging"
	"github.com/panduza/pza/pkg/paths"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds state shared by the commands of one root command
type app struct {
	verbosity  int
	configPath string
	cfg        *config.Config
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "pza",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity, refined once the config is loaded
			logging.SetupLogger(a.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf(MsgErrNoCommand)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", MsgFlagConfig)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(a.newBrokerCmd())
	rootCmd.AddCommand(a.newListenCmd())
	rootCmd.AddCommand(a.newPublishCmd())

	return rootCmd
}

// resolveConfigPath returns --config or the file in the user root
func (a *app) resolveConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	p, err := paths.New("")
	if err != nil {
		return "", err
	}
	return p.ConfigFile(), nil
}

// loadConfig loads the configuration file, creating it when missing, and
// applies its logging section unless -v was given
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	path, err := a.resolveConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if err := a.applyLogging(cfg.Logging); err != nil {
		return nil, err
	}

	config.Initialize(cfg)
	a.cfg = cfg
	return cfg, nil
}

func (a *app) applyLogging(lc config.LoggingConfig) error {
	b, err := lc.LoggerBuilder()
	if err != nil {
		return err
	}
	if a.verbosity > 0 {
		b.WithLevel(logging.VerbosityLevel(a.verbosity)).WithCaller(a.verbosity >= 2)
	}
	return b.WithLogFile(paths.DefaultLogFilePath()).Build()
}

// watchConfig reapplies the logging section on every change to the file
func (a *app) watchConfig() (*config.Watcher, error) {
	path, err := a.resolveConfigPath()
	if err != nil {
		return nil, err
	}

	w, err := config.NewWatcher(path)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(ctx context.Context, c config.Change) {
		logger := logging.GetLogger(logging.ComponentConfig)
		if err := a.applyLogging(c.New.Logging); err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid logging section")
			return
		}
		config.Initialize(c.New)
		logger.Info().Str("level", c.New.Logging.Level).Strs("filters", c.New.Logging.Filters).Msg("Logging updated")
	})

	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, MsgVersionFormat, version.Version)
			fmt.Fprintf(out, MsgCommitFormat, version.Commit)
			fmt.Fprintf(out, MsgBuiltFormat, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `To load completions:

Bash:
  $ source <(pza completion bash)

Zsh:
  $ pza completion zsh > "${fpath[1]}/_pza"

Fish:
  $ pza completion fish | source

PowerShell:
  PS> pza completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return fmt.Errorf(MsgErrInvalidShell, args[0])
		},
	}
}

// defaultTimeout bounds publish and connection attempts
const defaultTimeout = 5 * time.Second
