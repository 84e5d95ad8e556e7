package inspect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dObj/cmd/util"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	InspectCmd = &cobra.Command{
		Use:     "inspect",
		Short:   "Print the tables of a data file",
		Long:    `Opens the data file (--data-file or DOBJ_DATA_FILE) read-only and prints every table with its columns and size, followed by the engine info.`,
		RunE:    run,
		PreRunE: util.BindCommandFlags,
	}
)

func init() {
	key := "info"
	InspectCmd.Flags().Bool(key, true, util.WrapString("Whether to print the engine info as JSON"))
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetConfig()
	if config.DataFile == "" {
		return fmt.Errorf("no data file given (use --data-file)")
	}
	config.SaveOnClose = false

	st, err := util.OpenStore(config)
	if err != nil {
		return err
	}
	defer st.Close()

	group := st.Group()
	fmt.Printf("%s (version %d)\n", config.DataFile, group.Version())
	for _, name := range group.TableNames() {
		t, ok := group.Table(name)
		if !ok {
			continue
		}
		fmt.Printf("\n%s (%d rows)\n", strings.ToUpper(name), t.Size())
		for _, c := range t.Columns() {
			fmt.Printf("  %-22s: %s\n", c.Name, describe(c))
		}
	}

	if viper.GetBool("info") {
		info, err := json.MarshalIndent(group.GetInfo(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("\nINFO\n%s\n", info)
	}
	return nil
}

// describe formats the type of a column, e.g. "list<int?>" or "linklist -> items"
func describe(c db.ColumnSpec) string {
	switch c.Kind {
	case db.KindLink, db.KindLinkList:
		return fmt.Sprintf("%s -> %s", c.Kind, c.Target)
	case db.KindList:
		element := c.Element.String()
		if c.ElementNullable {
			element += "?"
		}
		return fmt.Sprintf("list<%s>", element)
	default:
		if c.Nullable {
			return c.Kind.String() + "?"
		}
		return c.Kind.String()
	}
}
