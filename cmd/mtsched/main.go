package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mtsched/internal/config"
	appLog "mtsched/internal/log"
	"mtsched/internal/model"
	"mtsched/internal/rangefmt"
	"mtsched/internal/tzcatalog"
)

const version = "0.1.0"

func main() {
	NewCLI().Run()
}

// CLI is the cobra command tree.
type CLI struct {
	root *cobra.Command

	configPath string
	logLevel   string
	dev        bool
	envFiles   []string

	cfg *config.Config
}

// NewCLI sets up the root command and its sub-commands.
func NewCLI() *CLI {
	cli := &CLI{}
	cli.root = &cobra.Command{
		Use:           "mtsched",
		Short:         "Meeting time scheduler: pick ranges on a calendar, get shareable text",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.loadConfig()
		},
	}

	pf := cli.root.PersistentFlags()
	pf.StringVar(&cli.configPath, "config", config.DefaultPath, "Path to config file")
	pf.StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	pf.BoolVar(&cli.dev, "dev", false, "Human-readable console logs")
	pf.StringSliceVar(&cli.envFiles, "env-file", []string{".env"}, "dotenv files loaded before MTSCHED_* overrides")

	cli.root.AddCommand(
		cli.newServeCmd(),
		cli.newFormatCmd(),
		cli.newZonesCmd(),
	)
	return cli
}

// Run executes the CLI and exits non-zero on error.
func (cli *CLI) Run() {
	defer appLog.Sync()
	if err := cli.root.Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then dotenv files and environment
// overrides, and configures logging.
func (cli *CLI) loadConfig() error {
	if err := config.LoadDotEnv(cli.envFiles...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		// Load hands back defaults when only the first-run write failed.
		if cfg == nil {
			return fmt.Errorf("load config %s: %w", cli.configPath, err)
		}
		appLog.Warn("config file not written, using defaults", "config_path", cli.configPath, "err", err)
	}
	cfg.ApplyEnv()
	if cli.logLevel != "" {
		cfg.LogLevel = cli.logLevel
	}

	if err := appLog.Setup(cfg.LogLevel, cli.dev); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	cli.cfg = cfg
	return nil
}

// newFormatter builds the range formatter from config.
func newFormatter(cfg *config.Config) (*rangefmt.Formatter, error) {
	primary, err := time.LoadLocation(cfg.PrimaryTimezone)
	if err != nil {
		return nil, fmt.Errorf("primary timezone %q: %w", cfg.PrimaryTimezone, err)
	}
	return rangefmt.New(primary,
		rangefmt.WithOrdinals(rangefmt.ParseOrdinalStyle(cfg.Ordinals)),
		rangefmt.WithLanguage(cfg.Language),
	)
}

func (cli *CLI) newFormatCmd() *cobra.Command {
	var (
		secondary    string
		useSecondary bool
	)
	cmd := &cobra.Command{
		Use:   "format START END",
		Short: "Format one range the way the web page does",
		Example: `  mtsched format 2024-06-01T10:00:00 2024-06-01T11:00:00
  mtsched format --secondary America/Los_Angeles 2024-06-01T10:00:00Z 2024-06-01T11:00:00Z`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFormatter(cli.cfg)
			if err != nil {
				return err
			}

			use := cli.cfg.SecondaryEnabled()
			if cmd.Flags().Changed("use-secondary") {
				use = useSecondary
			}
			if secondary != "" && !cmd.Flags().Changed("use-secondary") {
				use = true
			}

			var loc *time.Location
			if use {
				zones, err := tzcatalog.Load()
				if err != nil {
					return err
				}
				zone := secondary
				if zone == "" {
					zone = cli.cfg.SecondaryTimezone
				}
				if zone == "" {
					zone = zones.Default()
				}
				if _, loc, err = zones.Resolve(zone); err != nil {
					return err
				}
			}

			rec, err := f.FormatEvent(model.SelectionEvent{Start: args[0], End: args[1]}, loc, use)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rec.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&secondary, "secondary", "", "Secondary zone (IANA id or dropdown label)")
	cmd.Flags().BoolVar(&useSecondary, "use-secondary", false, "Include the secondary zone (default from config)")
	return cmd
}

func (cli *CLI) newZonesCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "List the secondary zone dropdown entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zones, err := tzcatalog.Load()
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				t, _, err := rangefmt.ParseTimestamp(at)
				if err != nil {
					return err
				}
				now = t
			}
			out := cmd.OutOrStdout()
			for _, opt := range zones.Options(now) {
				if _, err := fmt.Fprintln(out, opt.Label); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Compute labels at this instant instead of now (ISO-8601)")
	return cmd
}
