package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "fraud-etl",
		Short: "Fraud analytics ETL",
		Long: color.CyanString(`fraud-etl - Flatten the fraud OLTP tables into one analytics table`) + `

Reads transactions, customers, merchants, categories, addresses and cities,
joins them into one record per transaction and appends the result to
ClickHouse, DuckDB or parquet files.`,
		SilenceUsage: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); FRAUDETL_* env vars override it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
