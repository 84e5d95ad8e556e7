package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dObj/cmd/bench"
	"github.com/ValentinKolb/dObj/cmd/export"
	"github.com/ValentinKolb/dObj/cmd/inspect"
	"github.com/ValentinKolb/dObj/cmd/stats"
	"github.com/ValentinKolb/dObj/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dobj",
		Short: "typed, observable collections for an embedded object database",
		Long: fmt.Sprintf(`dObj (v%s)

Typed list and results accessors with change notifications for an
embedded object database, with tools to benchmark, inspect and
export data files.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dObj",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dObj v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(inspect.InspectCmd)
	RootCmd.AddCommand(export.ExportCmd)
	RootCmd.AddCommand(stats.StatsCmd)

	// Add Flags
	util.SetupConfigFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
