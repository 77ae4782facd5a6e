package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/auth"
	"github.com/iho/stockledger/internal/infrastructure/config"
	"github.com/iho/stockledger/internal/infrastructure/logger"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
)

// options are the persistent flags shared by every API command.
type options struct {
	baseURL    string
	token      string
	ownerID    int64
	timeout    time.Duration
	maxRetries uint64
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "stockledger",
		Short:        "Stock ledger CLI tool",
		Long:         `A command line interface for recording stock movements through the stock ledger API.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", envOr("STOCKLEDGER_URL", "http://localhost:8080"), "Base URL of the stock ledger API")
	flags.StringVar(&opts.token, "token", os.Getenv("STOCKLEDGER_TOKEN"), "Bearer token (see the token command)")
	flags.Int64Var(&opts.ownerID, "owner", envInt("STOCKLEDGER_OWNER", 0), "Owner ID sent as X-Owner-ID when no token is given")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.Uint64Var(&opts.maxRetries, "retries", 5, "Resubmissions of retryable failures")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log retries to stderr")

	rootCmd.AddCommand(
		recordsCmd(opts),
		entriesCmd(opts),
		balanceCmd(opts),
		summaryCmd(opts),
		reconcileCmd(opts),
		migrateCmd(),
		tokenCmd(),
	)

	return rootCmd
}

func (o *options) client(cmd *cobra.Command) *client {
	level := zerolog.WarnLevel
	if !o.verbose {
		level = zerolog.ErrorLevel
	}

	return &client{
		http:            &http.Client{Timeout: o.timeout},
		logger:          logger.New(logger.Config{Output: cmd.ErrOrStderr(), Format: "console"}).Level(level),
		baseURL:         o.baseURL,
		token:           o.token,
		ownerID:         o.ownerID,
		maxRetries:      o.maxRetries,
		initialInterval: 100 * time.Millisecond,
	}
}

func recordsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage stock records",
	}

	var (
		openingBalance string
		openingDate    string
	)
	createCmd := &cobra.Command{
		Use:   "create CODE",
		Short: "Create a record, optionally with an opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.CreateRecordRequest{Code: args[0], OpeningDate: openingDate}
			if openingBalance != "" {
				q, err := domain.ParseQuantity("opening balance", openingBalance)
				if err != nil {
					return err
				}
				req.OpeningBalance = &q
			}

			var record dto.RecordResponse
			if err := opts.client(cmd).do(cmd.Context(), http.MethodPost, "/api/v1/records", req, &record); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	createCmd.Flags().StringVar(&openingBalance, "opening-balance", "", "Opening quantity")
	createCmd.Flags().StringVar(&openingDate, "opening-date", "", "Opening date (YYYY-MM-DD, default today)")

	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListRecordsResponse
			path := fmt.Sprintf("/api/v1/records?page=%d&page_size=%d", page, pageSize)
			if err := opts.client(cmd).get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tBALANCE\tSTATUS")
			for _, r := range resp.Records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, truncate(r.Code, 30), r.CurrentBalance.StringFixed(domain.QuantityScale), r.Status)
			}
			fmt.Fprintf(tw, "\npage %d of %d (%d records)\n", resp.Pagination.Page, resp.Pagination.TotalPages, resp.Pagination.Total)
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "Page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Page size")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var record dto.RecordResponse
			if err := opts.client(cmd).get(cmd.Context(), fmt.Sprintf("/api/v1/records/%d", id), &record); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record and all of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := opts.client(cmd).do(cmd.Context(), http.MethodDelete, fmt.Sprintf("/api/v1/records/%d", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "record %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd, getCmd, deleteCmd)
	return cmd
}

// entryFlags binds the movement fields shared by add and update.
type entryFlags struct {
	date    string
	in      string
	out     string
	remarks string
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Entry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.in, "in", "", "Quantity received")
	cmd.Flags().StringVar(&f.out, "out", "", "Quantity issued")
	cmd.Flags().StringVar(&f.remarks, "remarks", "", "Remarks")
	_ = cmd.MarkFlagRequired("date")
}

func (f *entryFlags) request() (dto.EntryRequest, error) {
	in, err := domain.ParseQuantity("quantity in", f.in)
	if err != nil {
		return dto.EntryRequest{}, err
	}
	out, err := domain.ParseQuantity("quantity out", f.out)
	if err != nil {
		return dto.EntryRequest{}, err
	}

	return dto.EntryRequest{
		EntryDate:   f.date,
		QuantityIn:  &in,
		QuantityOut: &out,
		Remarks:     f.remarks,
	}, nil
}

func entriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Record and edit stock movements",
	}

	addFlags := &entryFlags{}
	addCmd := &cobra.Command{
		Use:   "add RECORD_ID",
		Short: "Add a movement to a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}
			req, err := addFlags.request()
			if err != nil {
				return err
			}

			var entry dto.EntryResponse
			path := fmt.Sprintf("/api/v1/records/%d/entries", recordID)
			if err := opts.client(cmd).do(cmd.Context(), http.MethodPost, path, req, &entry); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	addFlags.bind(addCmd)

	updateFlags := &entryFlags{}
	updateCmd := &cobra.Command{
		Use:   "update ENTRY_ID",
		Short: "Replace the date, quantities and remarks of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			req, err := updateFlags.request()
			if err != nil {
				return err
			}

			var entry dto.EntryResponse
			path := fmt.Sprintf("/api/v1/entries/%d", entryID)
			if err := opts.client(cmd).do(cmd.Context(), http.MethodPut, path, req, &entry); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	updateFlags.bind(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete ENTRY_ID",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := opts.client(cmd).do(cmd.Context(), http.MethodDelete, fmt.Sprintf("/api/v1/entries/%d", entryID), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry %d deleted\n", entryID)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get ENTRY_ID",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}

			var entry dto.EntryResponse
			if err := opts.client(cmd).get(cmd.Context(), fmt.Sprintf("/api/v1/entries/%d", entryID), &entry); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list RECORD_ID",
		Short: "Show the movement history of a record, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}

			var resp dto.ListEntriesResponse
			path := fmt.Sprintf("/api/v1/records/%d/entries?page=%d&page_size=%d", recordID, page, pageSize)
			if err := opts.client(cmd).get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tIN\tOUT\tBALANCE\tREMARKS")
			for _, e := range resp.Entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.EntryDate,
					e.QuantityIn.StringFixed(domain.QuantityScale),
					e.QuantityOut.StringFixed(domain.QuantityScale),
					e.Balance.StringFixed(domain.QuantityScale),
					truncate(e.Remarks, 40),
				)
			}
			fmt.Fprintf(tw, "\npage %d of %d (%d entries)\n", resp.Pagination.Page, resp.Pagination.TotalPages, resp.Pagination.Total)
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "Page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Page size")

	cmd.AddCommand(addCmd, updateCmd, deleteCmd, getCmd, listCmd)
	return cmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance RECORD_ID",
		Short: "Show the latest balance of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}

			var resp dto.BalanceResponse
			if err := opts.client(cmd).get(cmd.Context(), fmt.Sprintf("/api/v1/records/%d/balance", recordID), &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.Balance.StringFixed(domain.QuantityScale), resp.Status)
			return nil
		},
	}
}

func summaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [RECORD_ID]",
		Short: "Show stock totals for one record or for every record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client(cmd)

			if len(args) == 1 {
				recordID, err := parseID(args[0])
				if err != nil {
					return err
				}

				var summary domain.RecordSummary
				if err := c.get(cmd.Context(), fmt.Sprintf("/api/v1/records/%d/summary", recordID), &summary); err != nil {
					return err
				}
				return printSummaries(cmd.OutOrStdout(), []domain.RecordSummary{summary})
			}

			var resp struct {
				Records []domain.RecordSummary `json:"records"`
			}
			if err := c.get(cmd.Context(), "/api/v1/summary", &resp); err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), resp.Records)
		},
	}
}

func printSummaries(w io.Writer, summaries []domain.RecordSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tIN\tOUT\tBALANCE\tENTRIES\tSTATUS")

	totalIn, totalOut := decimal.Zero, decimal.Zero
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.RecordID, truncate(s.Code, 30),
			s.TotalIn.StringFixed(domain.QuantityScale),
			s.TotalOut.StringFixed(domain.QuantityScale),
			s.CurrentBalance.StringFixed(domain.QuantityScale),
			s.EntryCount, s.Status,
		)
		totalIn = totalIn.Add(s.TotalIn)
		totalOut = totalOut.Add(s.TotalOut)
	}

	if len(summaries) > 1 {
		fmt.Fprintf(tw, "\t\t%s\t%s\t\t\t\n", totalIn.StringFixed(domain.QuantityScale), totalOut.StringFixed(domain.QuantityScale))
	}
	return tw.Flush()
}

func reconcileCmd(opts *options) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile [RECORD_ID]",
		Short: "Verify stored balances against a recompute, optionally repairing them",
		Long: `Without RECORD_ID every record of the owner is checked and a report is printed.
With RECORD_ID the record is checked, or repaired when --repair is set.
Exits non-zero when mismatches remain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client(cmd)

			if len(args) == 0 {
				if repair {
					return fmt.Errorf("--repair needs a RECORD_ID")
				}

				var report dto.ReconciliationReportResponse
				if err := c.get(cmd.Context(), "/api/v1/reconciliation", &report); err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if report.ReconciledRecords != report.TotalRecords {
					return fmt.Errorf("%d of %d records are out of balance", report.TotalRecords-report.ReconciledRecords, report.TotalRecords)
				}
				return nil
			}

			recordID, err := parseID(args[0])
			if err != nil {
				return err
			}

			method := http.MethodGet
			if repair {
				method = http.MethodPost
			}

			var result dto.ReconciliationResponse
			if err := c.do(cmd.Context(), method, fmt.Sprintf("/api/v1/records/%d/reconciliation", recordID), nil, &result); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsReconciled {
				return fmt.Errorf("record %d has %d mismatched entries", recordID, len(result.Mismatches))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite stored balances from a recompute")

	return cmd
}

// migrateRunner is swapped in tests.
var migrateRunner = func(databaseURL, path string, log zerolog.Logger, up bool) error {
	m := postgres.NewMigrator(databaseURL, path, log)
	if up {
		return m.Up()
	}
	return m.Down()
}

func migrateCmd() *cobra.Command {
	var (
		databaseURL string
		path        string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL")
	cmd.PersistentFlags().StringVar(&path, "path", "", "Migrations directory (default: embedded migrations)")

	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			log := logger.New(logger.Config{Output: cmd.ErrOrStderr(), Format: "console"})
			return migrateRunner(databaseURL, path, log, up)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Roll back every migration", Args: cobra.NoArgs, RunE: run(false)},
	)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		ownerID int64
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an owner, signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if ownerID <= 0 {
				return fmt.Errorf("--owner must be positive")
			}
			if ttl <= 0 {
				ttl = cfg.JWTExpiration
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, ttl).Generate(ownerID, subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner ID")
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}
