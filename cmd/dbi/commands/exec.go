package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/ui"
	"github.com/hazaarlabs/dbi/pkg/client"
)

// NewExecCommand creates the exec command.
func NewExecCommand(opts *globalOptions) *cobra.Command {
	var (
		stmt    statement
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec [document]",
		Short: "Run a query document against the database",
		Long: `Compile a query document, or a table and filter expression, and run it.
SELECT and RETURNING statements print their rows as a table.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt.args(args)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withConnection(ctx, opts, func(c *client.Client) error {
				b, err := stmt.build(c)
				if err != nil {
					return err
				}
				res, err := c.Run(ctx, b)
				if err != nil {
					return err
				}
				if b.Returns() {
					if err := ui.PrintRows(res.Rows); err != nil {
						return err
					}
				}
				ui.PrintSuccess("%d row(s)", res.RowsAffected)
				return nil
			})
		},
	}

	stmt.addFlags(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Abort after this long")

	return cmd
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(opts *globalOptions) *cobra.Command {
	var stmt statement

	cmd := &cobra.Command{
		Use:   "explain [document]",
		Short: "Show the query plan of a query document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt.args(args)
			ctx := cmd.Context()

			return withConnection(ctx, opts, func(c *client.Client) error {
				b, err := stmt.build(c)
				if err != nil {
					return err
				}
				compiled, err := b.Compile()
				if err != nil {
					return err
				}

				prefix := "EXPLAIN "
				if compiled.Dialect == domain.SQLite {
					prefix = "EXPLAIN QUERY PLAN "
				}
				plan := compiled
				plan.Query = prefix + compiled.Query
				plan.Groups = nil

				rows, err := c.Query(ctx, plan)
				if err != nil {
					return err
				}
				return ui.PrintMarkdown(ui.Markdown("explain", compiled.Query+";", compiled.Args) + planMarkdown(rows))
			})
		},
	}

	stmt.addFlags(cmd)
	return cmd
}

// withConnection connects a client for the duration of fn.
func withConnection(ctx context.Context, opts *globalOptions, fn func(c *client.Client) error) error {
	c, err := opts.client(nil)
	if err != nil {
		return err
	}

	spinner, _ := ui.PrintSpinner(fmt.Sprintf("Connecting to %s", opts.cfg.Dialect))
	err = c.Connect(ctx)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}
	defer c.Disconnect(context.Background())

	return fn(c)
}

func planMarkdown(rows []map[string]any) string {
	if len(rows) == 0 {
		return ""
	}
	headers, cells := ui.TableData(rows)

	var sb strings.Builder
	sb.WriteString("\n## Plan\n\n| " + strings.Join(headers, " | ") + " |\n|")
	sb.WriteString(strings.Repeat("---|", len(headers)) + "\n")
	for _, line := range cells {
		sb.WriteString("| " + strings.Join(line, " | ") + " |\n")
	}
	return sb.String()
}
