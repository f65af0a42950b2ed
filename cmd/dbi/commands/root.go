// Package commands implements CLI commands.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazaarlabs/dbi/internal/config"
	"github.com/hazaarlabs/dbi/internal/core/query/dsl"
	"github.com/hazaarlabs/dbi/internal/debug"
	"github.com/hazaarlabs/dbi/internal/ui"
	"github.com/hazaarlabs/dbi/pkg/client"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	dialect    string
	debug      bool
	noColor    bool

	cfg *config.Config
}

// NewRootCommand creates the dbi root command.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "dbi",
		Short:         "Compile and run SQL from criteria documents",
		Long:          "dbi builds SQL statements for PostgreSQL, MySQL and SQLite from JSON or YAML query documents and filter expressions.",
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (default: .dbi.yaml in ., $HOME or ~/.config/dbi)")
	cmd.PersistentFlags().StringVarP(&opts.dialect, "dialect", "d", "", "SQL dialect (postgres, mysql, sqlite)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func (o *globalOptions) load() error {
	if o.noColor {
		ui.DisableColor()
	}

	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return err
	}
	if o.dialect != "" {
		cfg.Dialect = o.dialect
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if o.debug {
		cfg.Debug = true
	}
	o.cfg = cfg

	debug.InitWithWriter(os.Stderr, debug.Format(cfg.LogFormat), cfg.Debug)
	debug.Debug("configuration loaded", "dialect", cfg.Dialect, "schema", cfg.Schema, "bind_values", cfg.BindValues)
	return nil
}

// client creates a client from the loaded configuration. bind overrides the configured
// bind_values setting when set.
func (o *globalOptions) client(bind *bool) (*client.Client, error) {
	cfg := o.cfg
	bindValues := cfg.BindValues
	if bind != nil {
		bindValues = *bind
	}
	return client.New(
		client.WithDialect(cfg.Dialect),
		client.WithDatabaseURL(cfg.DatabaseURL),
		client.WithSchema(cfg.Schema),
		client.WithServerVersion(cfg.ServerVersion),
		client.WithMaxOpenConnections(cfg.MaxConnections),
		client.WithConnectTimeout(time.Duration(cfg.ConnectTimeout)*time.Second),
		client.WithBindValues(bindValues),
		client.WithTelemetry(cfg.Telemetry),
	)
}

// statement describes where a command takes its statement from: a document file or a
// table with an optional filter expression.
type statement struct {
	file   string
	table  string
	filter string
}

func (s *statement) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.table, "table", "t", "", "Select from table instead of reading a document")
	cmd.Flags().StringVarP(&s.filter, "where", "w", "", "Filter expression, e.g. \"age >= 18 and name ~* '^a'\"")
}

func (s *statement) build(c *client.Client) (*client.Builder, error) {
	if s.file != "" {
		data, err := os.ReadFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		b, err := c.Document(data, dsl.FormatFromPath(s.file))
		if err != nil {
			return nil, err
		}
		if s.filter != "" {
			return nil, fmt.Errorf("--where cannot be combined with a document; use its filter key")
		}
		return b, nil
	}

	if s.table == "" {
		return nil, fmt.Errorf("a document file or --table is required")
	}
	b := c.Table(s.table)
	if s.filter != "" {
		criteria, err := dsl.ParseFilter(s.filter)
		if err != nil {
			return nil, err
		}
		b.Where(criteria)
	}
	return b, nil
}

func (s *statement) args(args []string) {
	if len(args) > 0 {
		s.file = args[0]
	}
}
