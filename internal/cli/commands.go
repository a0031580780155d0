package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"slotbot/internal/app"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		noWait bool
		today  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reserve today's eligible slots once",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := opts.load()
			if err != nil {
				return err
			}
			logs, log := opts.logger(cfg)
			defer logs.Close()

			r, err := app.NewRunner(cfg, log)
			if err != nil {
				return err
			}
			r.NoWait = noWait
			if today != "" {
				if r.Today, err = parseDate("today", today, cfg); err != nil {
					return err
				}
			}

			sum, err := r.Run(cmd.Context())
			if errors.Is(err, schedule.ErrNoEligibleSlots) {
				fmt.Fprintf(cmd.OutOrStdout(), "no eligible slots for %s\n", sum.TargetDate.Format(time.DateOnly))
				return err
			}
			for _, rep := range sum.Reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s  %-16s %s\n",
					rep.Slot.Facility, rep.Slot.StartingTime, rep.Outcome.Kind, rep.Duration.Round(time.Second))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "skip waiting for reservation.target_time")
	cmd.Flags().StringVar(&today, "today", "", "pretend today is YYYY-MM-DD")
	return cmd
}

func newDaemonCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run a pass on daemon.cron until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := opts.load()
			if err != nil {
				return err
			}
			logs, log := opts.logger(cfg)
			defer logs.Close()

			d := &app.Daemon{
				Manager: m,
				Logs:    logs,
				Log:     log.With(logx.String("comp", "daemon")),
			}
			return d.Run(cmd.Context())
		},
	}
}

func newSlotsCmd(opts *options) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the eligible slots for a target date without reserving",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := opts.load()
			if err != nil {
				return err
			}
			r := &app.Runner{Config: cfg}
			if date != "" {
				target, err := parseDate("date", date, cfg)
				if err != nil {
					return err
				}
				r.Today = target.AddDate(0, 0, -cfg.Reservation.Lookahead())
			}

			plan, err := r.Plan(logx.Nop())
			if err != nil && !errors.Is(err, schedule.ErrNoEligibleSlots) {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target %s (%s)\n", plan.TargetDate.Format(time.DateOnly), schedule.WeekdayName(plan.Weekday))
			if err != nil {
				fmt.Fprintln(out, "no eligible slots")
				return err
			}
			for _, f := range plan.Facilities {
				fmt.Fprintf(out, "%s [%s] %s\n", f.Name, f.ActivityButton, f.Link)
				for _, s := range f.Slots {
					fmt.Fprintf(out, "  %s\n", s.StartingTime)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "target date YYYY-MM-DD (default today + lookahead_days)")
	return cmd
}

func newCodeCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Check the mailbox once for a confirmation code",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := opts.load()
			if err != nil {
				return err
			}
			logs, log := opts.logger(cfg)
			defer logs.Close()

			retriever, err := app.NewRetriever(cfg, log)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			code, ok, err := retriever.Retrieve(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no confirmation code in unseen mail")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "bound for the whole attempt")
	return cmd
}
