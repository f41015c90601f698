package admin

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
)

const gooseVersionTable = "goose_db_version"

// ResetTables lists every table the pipeline owns, dependents first.
func ResetTables() []string {
	tables := []string{"votos_consolidados", "arquivos_processados"}
	types := slices.Clone(dimension.Types)
	slices.Reverse(types)
	schemas := dimension.Schemas()
	for _, t := range types {
		tables = append(tables, schemas[t].Table)
	}
	return append(tables, gooseVersionTable)
}

type ResetOptions struct {
	DryRun      bool
	SkipConfirm bool
	In          io.Reader
	Out         io.Writer
}

// ResetDB drops every pipeline table after an interactive confirmation.
func ResetDB(ctx context.Context, log *slog.Logger, db *sql.DB, opts ResetOptions) error {
	tables := ResetTables()

	fmt.Fprintf(opts.Out, "WARNING: This will DROP %d table(s):\n\n", len(tables))
	for _, table := range tables {
		fmt.Fprintf(opts.Out, "  - %s\n", table)
	}

	if opts.DryRun {
		fmt.Fprintln(opts.Out, "\n[DRY RUN] Would drop the above tables")
		return nil
	}

	if !opts.SkipConfirm {
		fmt.Fprintf(opts.Out, "\nThis is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Fprintf(opts.Out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(opts.In).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintf(opts.Out, "\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Fprintln(opts.Out)
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Info("admin: dropped table", "table", table)
	}

	fmt.Fprintf(opts.Out, "Successfully dropped %d table(s)\n", len(tables))
	return nil
}
