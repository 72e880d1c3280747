package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	baseURL string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "stockledger-cli",
		Short:         "StockLedger CLI tool",
		Long:          `A command line interface for interacting with the StockLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the StockLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		registerCmd(opts),
		moveCmd(opts),
		balanceCmd(opts),
		historyCmd(opts),
		lowBalanceCmd(opts),
		averageCmd(opts),
		reconcileCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}

func registerCmd(opts *options) *cobra.Command {
	var initial string

	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "Register a new entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"name": args[0], "initial_balance": initial}

			var entity dto.EntityResponse
			if err := newClient(opts).do(http.MethodPost, "/api/v1/entities/", body, &entity); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entity)
		},
	}

	cmd.Flags().StringVar(&initial, "initial", "0", "Initial balance")
	return cmd
}

func moveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move ENTITY_ID DIRECTION MAGNITUDE",
		Short: "Apply a movement (increase or decrease) to an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"direction": args[1], "magnitude": args[2]}

			var movement dto.MovementResponse
			if err := newClient(opts).do(http.MethodPost, "/api/v1/entities/"+url.PathEscape(args[0])+"/movements", body, &movement); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), movement)
		},
	}
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ENTITY_ID",
		Short: "Show the current balance of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var balance dto.BalanceResponse
			if err := newClient(opts).do(http.MethodGet, "/api/v1/entities/"+url.PathEscape(args[0])+"/balance", nil, &balance); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", balance.Name, balance.Balance.String())
			return nil
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "history ENTITY_ID",
		Short: "List the movements of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}

			path := "/api/v1/entities/" + url.PathEscape(args[0]) + "/movements"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var movements []dto.MovementResponse
			if err := newClient(opts).do(http.MethodGet, path, nil, &movements); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOCCURRED AT\tDIRECTION\tMAGNITUDE\tBALANCE")
			for _, m := range movements {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.OccurredAt.Format(time.RFC3339), m.Direction, m.Magnitude, m.BalanceAfter)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only movements at or after this RFC3339 time")
	cmd.Flags().StringVar(&to, "to", "", "Only movements at or before this RFC3339 time")
	return cmd
}

func lowBalanceCmd(opts *options) *cobra.Command {
	var threshold string

	cmd := &cobra.Command{
		Use:   "low-balance",
		Short: "List entities at or below the low-balance threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/entities/low-balance"
			if threshold != "" {
				path += "?threshold=" + url.QueryEscape(threshold)
			}

			var entities []dto.EntityResponse
			if err := newClient(opts).do(http.MethodGet, path, nil, &entities); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBALANCE")
			for _, e := range entities {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, truncate(e.Name, 32), e.Balance)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&threshold, "threshold", "", "Threshold override (server default when empty)")
	return cmd
}

func averageCmd(opts *options) *cobra.Command {
	var window int
	var unit string

	cmd := &cobra.Command{
		Use:   "average ENTITY_ID",
		Short: "Average outflow over a trailing window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("window", fmt.Sprint(window))
			if unit != "" {
				q.Set("unit", unit)
			}

			var avg dto.AverageOutflowResponse
			path := "/api/v1/entities/" + url.PathEscape(args[0]) + "/average-outflow?" + q.Encode()
			if err := newClient(opts).do(http.MethodGet, path, nil, &avg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s per %s over %d %s\n", avg.Average, strings.TrimSuffix(avg.Unit, "s"), avg.Window, avg.Unit)
			return nil
		},
	}

	cmd.Flags().IntVar(&window, "window", 3, "Number of units in the window")
	cmd.Flags().StringVar(&unit, "unit", "months", "Window unit: days, weeks, months or years")
	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [ENTITY_ID]",
		Short: "Check stored balances against the movement log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(opts)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				var result dto.ReconciliationResponse
				if err := client.do(http.MethodGet, "/api/v1/entities/"+url.PathEscape(args[0])+"/reconciliation", nil, &result); err != nil {
					return err
				}
				if err := printJSON(out, result); err != nil {
					return err
				}
				if !result.Reconciled {
					return fmt.Errorf("entity %s is not reconciled", args[0])
				}
				return nil
			}

			var report dto.ReconciliationReportResponse
			if err := client.do(http.MethodGet, "/api/v1/reconciliation", nil, &report); err != nil {
				return err
			}

			if !report.Consistent {
				fmt.Fprintf(out, "Reconciliation FAILED: %d of %d entities disagree\n", len(report.Discrepancies), report.TotalEntities)
				for _, d := range report.Discrepancies {
					fmt.Fprintf(out, "  %s recorded=%s calculated=%s\n", d.EntityID, d.RecordedBalance, d.CalculatedBalance)
				}
				return fmt.Errorf("ledger is inconsistent")
			}

			fmt.Fprintf(out, "Reconciliation PASSED: %d entities\n", report.TotalEntities)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var databaseURL, migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the PostgreSQL schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
			m := postgres.NewMigrator(databaseURL, migrationsPath, logger)

			switch args[0] {
			case "up":
				return m.Up()
			case "down":
				return m.Down()
			case "version":
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
				return nil
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "Directory holding the migration files")
	return cmd
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newClient(opts *options) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		http:    &http.Client{Timeout: opts.timeout},
	}
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Kind != "" {
				return fmt.Errorf("%s (%s): %s", apiErr.Error, apiErr.Kind, apiErr.Message)
			}
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(data), 200))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
