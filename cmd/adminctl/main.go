package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"referral-tg-admin/internal/constants"
	"referral-tg-admin/internal/helpers"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/services"
	"referral-tg-admin/pkg/adminclient"
)

const usage = `Usage: adminctl [flags] <command> [args]

Commands:
  stats                  show dashboard figures
  users                  list Telegram users
  withdrawals            list withdrawal requests (see --status)
  approve <id>           approve a withdrawal request
  reject <id>            reject a withdrawal request
  reset-withdrawals      refund pending requests and delete all requests
  reset-all-data         delete all users, requests and ledger entries (needs --yes)
  hash-password <pass>   print a bcrypt hash, no server needed

Flags:
`

func main() {
	flags := newFlagSet()
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	opts, err := loadOptions(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	app := &cli{
		client:   adminclient.NewClient(opts.URL, opts.Username, opts.Password, logger),
		currency: opts.Currency,
		out:      tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0),
	}

	if err := app.run(context.Background(), args, opts.Status, opts.Yes); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	_ = app.out.Flush()
}

type cli struct {
	client   *adminclient.Client
	currency string
	out      *tabwriter.Writer
}

func (c *cli) run(ctx context.Context, args []string, status models.WithdrawalStatus, yes bool) error {
	switch args[0] {
	case "stats":
		return c.stats(ctx)
	case "users":
		return c.users(ctx)
	case "withdrawals":
		return c.withdrawals(ctx, status)
	case "approve":
		return c.review(ctx, args, models.WithdrawalApproved)
	case "reject":
		return c.review(ctx, args, models.WithdrawalRejected)
	case "reset-withdrawals":
		result, err := c.client.ResetWithdrawals(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s (%d refunded)\n", result.Message, result.Refunded)
		return nil
	case "reset-all-data":
		if !yes {
			return fmt.Errorf("reset-all-data deletes every user, pass --yes to confirm")
		}
		if err := c.client.ResetAllData(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "All data has been reset")
		return nil
	case "hash-password":
		if len(args) != 2 {
			return fmt.Errorf("usage: hash-password <password>")
		}
		hash, err := services.HashPassword(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, hash)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *cli) stats(ctx context.Context) error {
	stats, err := c.client.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Users\t%d\n", stats.ActualUsers)
	fmt.Fprintf(c.out, "New (30 days)\t%d\n", stats.RecentUsers)
	fmt.Fprintf(c.out, "Paid out\t%s\n", helpers.FormatAmount(c.currency, stats.ActualPayouts))
	fmt.Fprintf(c.out, "Pending\t%d\n", stats.PendingWithdrawals)
	fmt.Fprintf(c.out, "Shown users\t%d\n", stats.TotalUsers)
	fmt.Fprintf(c.out, "Shown payouts\t%s\n", helpers.FormatAmount(c.currency, stats.TotalPayouts))
	return nil
}

func (c *cli) users(ctx context.Context) error {
	users, err := c.client.Users(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "TELEGRAM ID\tNAME\tBALANCE\tREFERRALS\tJOINED\tCREATED")
	for _, u := range users {
		fmt.Fprintf(c.out, "%d\t%s\t%s\t%d\t%v\t%s\n",
			u.TelegramID,
			helpers.DisplayName(u.FirstName, u.LastName),
			helpers.FormatAmount(c.currency, u.Balance),
			u.ReferralCount,
			u.HasJoinedGroups,
			u.CreatedAt.Format(constants.TimestampFormat))
	}
	return nil
}

func (c *cli) withdrawals(ctx context.Context, status models.WithdrawalStatus) error {
	views, err := c.client.Withdrawals(ctx, status)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "ID\tTELEGRAM ID\tAMOUNT\tSTATUS\tBANK\tACCOUNT\tCREATED")
	for _, w := range views {
		fmt.Fprintf(c.out, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			w.ID,
			w.TelegramUserID,
			helpers.FormatAmount(c.currency, w.Amount),
			w.Status,
			w.BankName,
			w.AccountNumber,
			w.CreatedAt.Format(constants.TimestampFormat))
	}
	return nil
}

func (c *cli) review(ctx context.Context, args []string, status models.WithdrawalStatus) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s <id>", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid withdrawal id %q", args[1])
	}

	view, err := c.client.UpdateWithdrawal(ctx, id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Withdrawal #%d is now %s\n", view.ID, view.Status)
	return nil
}
