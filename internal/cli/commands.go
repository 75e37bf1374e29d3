package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fincal/internal/core"
	"fincal/internal/log"
	"fincal/internal/services"
)

// Opener returns a session for one command run. debug raises the log level.
type Opener func(ctx context.Context, debug bool) (*Session, error)

// DefaultOpener reads .env and the environment, logs to stderr and opens the
// configured backend. Without DATA_BACKEND=sqlite every run starts from the
// seed file or an empty ledger.
func DefaultOpener(ctx context.Context, debug bool) (*Session, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.LogLevel = "debug"
	} else if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	logger := SetupLogger(cfg, log.ComponentCLI, os.Stderr)
	return OpenService(ctx, cfg, logger, nil)
}

type app struct {
	open  Opener
	debug bool
	sess  *Session
}

func (a *app) service() *services.LedgerService {
	return a.sess.Service
}

// Execute runs fincalctl with args and closes the session it opened, even
// when the command fails.
func Execute(ctx context.Context, open Opener, args []string, stdout, stderr io.Writer) error {
	a := &app{open: open}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.sess != nil {
		if cerr := a.sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fincalctl",
		Short: "Manage bills and income from the command line",
		Long: `fincalctl runs the finance calendar against the configured backend.

Example:
  fincalctl add income --date 2024-03-01 --amount 1000 --description Salary
  fincalctl add bill --date 2024-03-05 --amount 200 --description Rent
  fincalctl bills --month 2024-03
  fincalctl pay <bill-id>
  fincalctl balance`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd.Context(), a.debug)
			if err != nil {
				return err
			}
			a.sess = sess
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.balanceCmd(),
		a.summaryCmd(),
		a.billsCmd(),
		a.calendarCmd(),
		a.addCmd(),
		a.payCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print total income minus paid bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s\n", a.service().Balance(cmd.Context()))
			return nil
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print income, bill and balance totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.service().Summary(cmd.Context())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "Total income\t%s\t\n", s.TotalIncome)
			fmt.Fprintf(tw, "Total bills\t%s\t\n", s.TotalBills)
			fmt.Fprintf(tw, "Paid\t%s\t\n", s.TotalPaid)
			fmt.Fprintf(tw, "Unpaid\t%s\t\n", s.TotalUnpaid)
			fmt.Fprintf(tw, "Balance\t%s\t\n", s.Balance)
			return tw.Flush()
		},
	}
}

func (a *app) monthFlag(raw string) (core.Month, error) {
	if strings.TrimSpace(raw) == "" {
		return a.service().CurrentMonth(), nil
	}
	return core.ParseMonth(raw)
}

func (a *app) billsCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "List the bills of a month, unpaid first within each day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.monthFlag(month)
			if err != nil {
				return err
			}
			mb, err := a.service().MonthlyBills(cmd.Context(), m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bills for %s\n", mb.Month)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, b := range mb.Bills {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Date, paidMark(b.IsPaid), b.Amount, b.Description, b.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total unpaid: %s\n", mb.TotalUnpaid)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current month)")
	return cmd
}

func (a *app) calendarCmd() *cobra.Command {
	var (
		month string
		grid  bool
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the days of a month that have entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.monthFlag(month)
			if err != nil {
				return err
			}
			days, err := a.service().Calendar(cmd.Context(), m, grid)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Calendar for %s\n", m)
			for _, d := range days {
				if len(d.Bills) == 0 && len(d.Income) == 0 && !d.IsToday {
					continue
				}
				writeDay(out, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current month)")
	cmd.Flags().BoolVar(&grid, "grid", false, "include padding days of adjacent months")
	return cmd
}

func writeDay(w io.Writer, d core.CalendarDay) {
	marker := " "
	switch {
	case d.IsToday:
		marker = "*"
	case !d.InMonth:
		marker = "~"
	}
	fmt.Fprintf(w, "%s %s %s\n", marker, d.Date, d.Date.Weekday().String()[:3])
	for _, inc := range d.Income {
		fmt.Fprintf(w, "    +%s  %s\n", inc.Amount, inc.Description)
	}
	for _, b := range d.Bills {
		fmt.Fprintf(w, "    -%s  %s %s\n", b.Amount, b.Description, paidMark(b.IsPaid))
	}
}

func paidMark(paid bool) string {
	if paid {
		return "[x]"
	}
	return "[ ]"
}

func (a *app) addCmd() *cobra.Command {
	var date, amount, description string

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a bill or an income entry",
	}
	add.PersistentFlags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	add.PersistentFlags().StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	add.PersistentFlags().StringVar(&description, "description", "", "description")
	_ = add.MarkPersistentFlagRequired("amount")
	_ = add.MarkPersistentFlagRequired("description")

	parse := func() (core.Date, core.Money, error) {
		d := a.service().Today()
		if strings.TrimSpace(date) != "" {
			var err error
			if d, err = core.ParseDate(date); err != nil {
				return core.Date{}, core.Money{}, err
			}
		}
		m, err := core.ParseAmount(amount)
		if err != nil {
			return core.Date{}, core.Money{}, fmt.Errorf("%w: %q", err, amount)
		}
		return d, m, nil
	}

	add.AddCommand(
		&cobra.Command{
			Use:   "bill",
			Short: "Add an unpaid bill",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, m, err := parse()
				if err != nil {
					return err
				}
				b, err := a.service().AddBill(cmd.Context(), d, m, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added bill %s (%s %s %s)\n", b.ID, b.Date, b.Amount, b.Description)
				return nil
			},
		},
		&cobra.Command{
			Use:   "income",
			Short: "Add an income entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, m, err := parse()
				if err != nil {
					return err
				}
				inc, err := a.service().AddIncome(cmd.Context(), d, m, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added income %s (%s %s %s)\n", inc.ID, inc.Date, inc.Amount, inc.Description)
				return nil
			},
		},
	)
	return add
}

func (a *app) payCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay <bill-id>",
		Short: "Toggle the paid flag of a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.service().ToggleBillPaid(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "unpaid"
			if b.IsPaid {
				state = "paid"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bill %s is now %s\n", b.ID, state)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a bill or an income entry",
	}
	del.AddCommand(
		&cobra.Command{
			Use:   "bill <id>",
			Short: "Delete a bill",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.service().DeleteBill(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted bill %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "income <id>",
			Short: "Delete an income entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.service().DeleteIncome(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted income %s\n", args[0])
				return nil
			},
		},
	)
	return del
}
