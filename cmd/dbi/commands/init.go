package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/hazaarlabs/dbi/internal/config"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/ui"
)

// NewInitCommand creates the init command.
func NewInitCommand(opts *globalOptions) *cobra.Command {
	var (
		path string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a dbi configuration file",
		Long:  "Prompt for the dialect and compile settings and save them to a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if !yes {
				if err := promptConfig(&cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			file, err := config.SaveConfig(&cfg, path)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			ui.PrintSuccess("Created %s", file)
			ui.PrintInfo("Set DBI_DATABASE_URL or DATABASE_URL in your environment or .env file")
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", config.FileName+".yaml", "Where to write the config file (empty for ~/.config/dbi)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the current settings without prompting")

	return cmd
}

func promptConfig(cfg *config.Config) error {
	answers := struct {
		Dialect    string
		Schema     string
		BindValues bool `survey:"bind"`
		Telemetry  string
	}{}

	dialect, _ := domain.ParseDialect(cfg.Dialect)
	if dialect == "" {
		dialect = domain.PostgreSQL
	}

	questions := []*survey.Question{
		{
			Name: "dialect",
			Prompt: &survey.Select{
				Message: "Database dialect:",
				Options: []string{"postgres", "mysql", "sqlite"},
				Default: string(dialect),
			},
		},
		{
			Name: "schema",
			Prompt: &survey.Input{
				Message: "Default schema (blank for none):",
				Default: cfg.Schema,
			},
		},
		{
			Name: "bind",
			Prompt: &survey.Confirm{
				Message: "Compile values as bound parameters?",
				Default: cfg.BindValues,
			},
		},
		{
			Name: "telemetry",
			Prompt: &survey.Select{
				Message: "Telemetry:",
				Options: []string{"noop", "log", "prometheus"},
				Default: cfg.Telemetry,
			},
		},
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Dialect = answers.Dialect
	cfg.Schema = answers.Schema
	cfg.BindValues = answers.BindValues
	cfg.Telemetry = answers.Telemetry
	return nil
}
