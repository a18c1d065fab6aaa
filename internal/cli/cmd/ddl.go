package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

var (
	ddlDialect string
	ddlTable   string

	ddlCmd = &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE TABLE statement for the analytics table",
		Example: `  fraud-etl ddl
  fraud-etl ddl --dialect duckdb --table fraud_analytics_dev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stmt string
			switch ddlDialect {
			case "clickhouse":
				stmt = schema.ClickHouseDDL(ddlTable)
			case "duckdb":
				stmt = schema.DuckDBDDL(ddlTable)
			default:
				return fmt.Errorf("unknown dialect %q (want clickhouse or duckdb)", ddlDialect)
			}
			fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
			return nil
		},
	}
)

func init() {
	ddlCmd.Flags().StringVar(&ddlDialect, "dialect", "clickhouse", "SQL dialect: clickhouse or duckdb")
	ddlCmd.Flags().StringVar(&ddlTable, "table", schema.DefaultAnalyticsTable, "table name")
	rootCmd.AddCommand(ddlCmd)
}
