// Package cli is the slotbot command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slotbot/internal/config"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type options struct {
	configPath string
	envFile    string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "slotbot",
		Short:         "Reserves recreation time slots the moment registration opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "./config.yaml", "path to config (yaml or json)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with secrets; ignored when missing")
	pf.StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newDaemonCmd(opts))
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newCodeCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command with os.Args and returns the process exit
// code.
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if code != 0 {
		fmt.Fprintln(stderr, "fatal:", err)
	}
	return code
}

// exitCode is 0 for success and for "nothing to reserve"; everything else
// that reaches the top is fatal.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, schedule.ErrNoEligibleSlots):
		return 0
	default:
		return 1
	}
}

// load reads the dotenv file and the config.
func (o *options) load() (*config.Manager, *config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, &config.Error{Path: o.envFile, Err: err}
	}
	m := config.NewManager(o.configPath)
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, err
	}
	if lvl := strings.TrimSpace(o.logLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return m, cfg, nil
}

func (o *options) logger(cfg *config.Config) (*logx.Service, logx.Logger) {
	lc := cfg.Logging.LogConfig()
	if !lc.Console && !lc.File.Enabled {
		lc.Console = true
	}
	return logx.New(lc)
}

// parseDate parses YYYY-MM-DD in the reservation timezone.
func parseDate(flag, raw string, cfg *config.Config) (time.Time, error) {
	loc, err := config.LoadLocation(cfg.Reservation.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q: want YYYY-MM-DD", flag, raw)
	}
	return t, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slotbot %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
