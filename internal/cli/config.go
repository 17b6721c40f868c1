package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/infra/builtin"
	"github.com/runoshun/git-delegate/internal/infra/config"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// newConfigCommand creates the config command.
func newConfigCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage git-delegate configuration files and settings.`,
		// No RunE: shows subcommand list when called without arguments
	}

	// Add subcommands
	cmd.AddCommand(newConfigShowCommand(c))
	cmd.AddCommand(newConfigInitCommand(c))

	return cmd
}

// newConfigShowCommand creates the config show subcommand.
func newConfigShowCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display effective configuration after merging all sources.

Shows which config files were loaded and the final merged configuration.
Settings from the data root config override the global config.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowConfigUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowConfigInput{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			// Display loaded files section
			_, _ = fmt.Fprintln(w, "[Loaded from]")
			for _, info := range []domain.ConfigInfo{out.GlobalConfig, out.LocalConfig} {
				if info.Exists {
					_, _ = fmt.Fprintf(w, "- %s\n", info.Path)
				} else {
					_, _ = fmt.Fprintf(w, "- %s (not found)\n", info.Path)
				}
			}

			for _, warning := range out.Effective.Warnings {
				printWarning(cmd.ErrOrStderr(), warning)
			}

			// Profiles section
			profiles := builtin.NewResolver(out.Effective)
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "[Profiles]")
			for _, name := range profiles.Names() {
				line := "- " + name
				if name == profiles.DefaultName() {
					line += " (default)"
				}
				if domain.IsProfileDisabled(name, out.Effective.DisabledProfiles) {
					line += " (disabled)"
				}
				_, _ = fmt.Fprintln(w, line)
			}

			rendered, err := config.Render(out.Effective)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "[Effective config]")
			_, _ = fmt.Fprint(w, rendered)
			return nil
		},
	}
	return cmd
}

// newConfigInitCommand creates the config init subcommand.
func newConfigInitCommand(c *app.Container) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate configuration file template",
		Long: `Generate a configuration file template with every setting commented out.

By default, creates <data root>/config.toml.
With --global, creates $XDG_CONFIG_HOME/git-delegate/config.toml.

Error conditions:
- Target file already exists: error`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.InitConfigUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.InitConfigInput{Global: global})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", out.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Generate global configuration")

	return cmd
}
