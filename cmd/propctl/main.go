package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/propertysearch/backend/internal/adapters/database"
	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertysearch/backend/pkg/config"
)

var jsonOutput bool

func main() {
	observability.InitLogger("propctl", "development")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "propctl",
		Short:        "Operate the property search database",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "apply-schema",
		Short: "Create the search schema, listings table and history table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openDatabase()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := database.ApplySchema(cmd.Context(), client); err != nil {
				return err
			}
			log.Info().Msg("Schema applied")
			return nil
		},
	})

	historyCmd := &cobra.Command{
		Use:   "history [column:operator:value ...]",
		Short: "Query the prompt history",
		Long: "Each argument is one filter, e.g. query_template_used:=:true or user_prompt:ILIKE:%zurich%.\n" +
			"Filters are combined with AND unless --or is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			useOr, _ := cmd.Flags().GetBool("or")
			filters, err := parseFilters(args, useOr)
			if err != nil {
				return err
			}

			client, err := openDatabase()
			if err != nil {
				return err
			}
			defer client.Close()

			service := services.NewHistoryService(database.NewHistoryAdapter(client, nil))
			resp, err := service.GetHistory(cmd.Context(), &entities.HistoryRequest{Filters: filters})
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), resp.Rows)
		},
	}
	historyCmd.Flags().Bool("or", false, "Combine filters with OR")
	rootCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "rewrite-sql <statement>",
		Short: "Show how a generated statement is rewritten before execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rewritten := services.RewriteGeneratedSQL(args[0])
			if err := services.ValidateReadOnly(rewritten); err != nil {
				return fmt.Errorf("%s: %w", rewritten, err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), rewritten)
			return err
		},
	})

	return rootCmd
}

func openDatabase() (*postgres.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.HasCredentials() {
		log.Warn().Msg("DB_PASSWORD is not set")
	}
	return postgres.NewClient(&cfg.Database, cfg.OutboundTimeout), nil
}

// parseFilters turns column:operator:value arguments into filter conditions.
// The value may itself contain colons.
func parseFilters(args []string, useOr bool) ([]entities.FilterCondition, error) {
	filters := make([]entities.FilterCondition, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid filter %q, want column:operator:value", arg)
		}
		filter := entities.FilterCondition{Column: parts[0], Operator: parts[1], Value: parts[2]}
		if useOr {
			filter.Logic = "OR"
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

func printHistory(w io.Writer, rows []*entities.HistoryEntry) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROMPT\tTEMPLATE\tEXPLANATION")
	for _, row := range rows {
		template := "-"
		if row.QueryTemplateID != nil {
			template = fmt.Sprintf("#%d", *row.QueryTemplateID)
		} else if row.QueryTemplateUsed {
			template = "yes"
		}
		explanation := ""
		if row.QueryExplanation != nil {
			explanation = *row.QueryExplanation
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.UserPrompt, template, explanation)
	}
	return tw.Flush()
}
