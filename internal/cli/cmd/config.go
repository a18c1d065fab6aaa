package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate [config file]",
	Short: "Validate a configuration file",
	Long:  `Load a configuration (file, env overrides and defaults) and report errors and warnings without connecting anywhere.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if len(args) == 1 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		result := config.Validate(cfg)
		if result.HasErrors() {
			fmt.Fprintln(out, color.RedString("Configuration has errors:"))
			for _, err := range result.Errors {
				fmt.Fprintf(out, "  • %v\n", err)
			}
			return fmt.Errorf("configuration validation failed")
		}

		if len(result.Warnings) > 0 {
			fmt.Fprintln(out, color.YellowString("Configuration has warnings:"))
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "  • %s\n", warning)
			}
		}

		fmt.Fprintln(out, color.GreenString("Configuration is valid"))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg.Masked())
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}
