package export

import (
	"fmt"

	"github.com/ValentinKolb/dObj/cmd/util"
	dbexport "github.com/ValentinKolb/dObj/lib/db/export"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ExportCmd = &cobra.Command{
		Use:     "export",
		Short:   "Export a data file to another format",
		Long:    `Opens the data file (--data-file or DOBJ_DATA_FILE) read-only and writes its content to a new SQLite database. Every table becomes a SQL table, list and link list columns get tables of their own.`,
		RunE:    run,
		PreRunE: util.BindCommandFlags,
	}
)

func init() {
	key := "sqlite"
	ExportCmd.Flags().String(key, "", util.WrapString("Path of the SQLite database to create (must not exist)"))
}

func run(cmd *cobra.Command, _ []string) error {
	config := util.GetConfig()
	if config.DataFile == "" {
		return fmt.Errorf("no data file given (use --data-file)")
	}
	target := viper.GetString("sqlite")
	if target == "" {
		return fmt.Errorf("no export target given (use --sqlite)")
	}
	config.SaveOnClose = false

	st, err := util.OpenStore(config)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := dbexport.ExportSQLite(cmd.Context(), st.Group(), target)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d tables with %d rows to %s\n", stats.Tables, stats.Rows, target)
	return nil
}
