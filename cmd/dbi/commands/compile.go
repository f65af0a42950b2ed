package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazaarlabs/dbi/internal/ui"
	"github.com/hazaarlabs/dbi/internal/watch"
	"github.com/hazaarlabs/dbi/pkg/client"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand(opts *globalOptions) *cobra.Command {
	var (
		stmt     statement
		bind     bool
		markdown bool
		watching bool
	)

	cmd := &cobra.Command{
		Use:   "compile [document]",
		Short: "Compile a query document or filter to SQL",
		Long: `Compile a JSON or YAML query document, or a table and filter expression,
to SQL for the configured dialect without connecting to a database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt.args(args)

			var bindOverride *bool
			if cmd.Flags().Changed("bind") {
				bindOverride = &bind
			}
			c, err := opts.client(bindOverride)
			if err != nil {
				return err
			}

			compile := func() error {
				return runCompile(c, &stmt, markdown)
			}
			if !watching {
				return compile()
			}
			if stmt.file == "" {
				return fmt.Errorf("--watch requires a document file")
			}
			return watchDocument(stmt.file, func() error {
				if err := compile(); err != nil {
					ui.PrintError("%v", err)
				}
				return nil
			})
		},
	}

	stmt.addFlags(cmd)
	cmd.Flags().BoolVarP(&bind, "bind", "b", false, "Compile values as named parameters")
	cmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "Render the statement as markdown")
	cmd.Flags().BoolVar(&watching, "watch", false, "Recompile whenever the document changes")

	return cmd
}

func runCompile(c *client.Client, stmt *statement, markdown bool) error {
	b, err := stmt.build(c)
	if err != nil {
		return err
	}
	compiled, err := b.Compile()
	if err != nil {
		return err
	}

	if markdown {
		return ui.PrintMarkdown(ui.Markdown(string(b.Kind()), compiled.Query+";", compiled.Args))
	}
	ui.PrintSQL(compiled.Query+";", compiled.Args)
	return nil
}

// watchDocument runs fn now and after every change to file until interrupted.
func watchDocument(file string, fn func() error) error {
	w, err := watch.NewWatcher(file, func() error {
		ui.PrintSection(file)
		return fn()
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	ui.PrintInfo("watching %s, press Ctrl+C to stop", file)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	<-sig

	return w.Stop()
}
