package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information injected via main package
var (
	Version   string
	GitCommit string
	BuildDate string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		title := color.New(color.FgCyan, color.Bold)
		label := color.New(color.FgGreen)

		title.Fprintf(out, "fraud-etl %s\n", orDefault(Version, "dev"))
		fmt.Fprintln(out)

		label.Fprint(out, "Git commit: ")
		fmt.Fprintln(out, orDefault(GitCommit, "unknown"))

		label.Fprint(out, "Built:      ")
		fmt.Fprintln(out, orDefault(BuildDate, "unknown"))

		label.Fprint(out, "Go version: ")
		fmt.Fprintln(out, runtime.Version())

		label.Fprint(out, "OS/Arch:    ")
		fmt.Fprintf(out, "%s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, gitCommit, buildDate string) {
	Version = version
	GitCommit = gitCommit
	BuildDate = buildDate
}
