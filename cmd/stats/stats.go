package stats

import (
	"context"
	"fmt"
	"os"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dObj/cmd/util"
	"github.com/ValentinKolb/dObj/lib/collection"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	StatsCmd = &cobra.Command{
		Use:     "stats",
		Short:   "Run a short workload and print the collected metrics",
		Long:    `Runs a short workload of list writes, results and notifications against an in-memory store, then prints the notifier statistics and all metrics in the Prometheus text format.`,
		RunE:    run,
		PreRunE: util.BindCommandFlags,
	}
)

func init() {
	key := "items"
	StatsCmd.Flags().Int(key, 100, util.WrapString("Number of items in the workload"))
	key = "rounds"
	StatsCmd.Flags().Int(key, 10, util.WrapString("Number of write and refresh rounds"))
	key = "process-metrics"
	StatsCmd.Flags().Bool(key, false, util.WrapString("Whether to include go runtime and process metrics"))
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetConfig()
	config.DataFile = ""
	st, err := util.OpenStore(config)
	if err != nil {
		return err
	}
	defer st.Close()

	items := viper.GetInt("items")
	w, err := util.NewWorkload(st, items)
	if err != nil {
		return err
	}
	defer w.Close()

	changes := 0
	valuesToken, err := w.Values.AddNotificationCallback(func(notify.ChangeSet) { changes++ })
	if err != nil {
		return err
	}
	defer valuesToken.Unregister()

	sorted, err := w.Links.Sort(db.SortClause{Column: util.ItemValue, Ascending: false})
	if err != nil {
		return err
	}
	sortedToken, err := sorted.AddNotificationCallback(func(notify.ChangeSet) { changes++ })
	if err != nil {
		return err
	}
	defer sortedToken.Unregister()

	for round := 0; round < viper.GetInt("rounds"); round++ {
		err := w.Session.Write(func() error {
			if err := w.Values.Add(int64(round)); err != nil {
				return err
			}
			if size, err := w.Links.Size(); err != nil || size < 2 {
				return err
			}
			return w.Links.Swap(0, 1)
		})
		if err != nil {
			return err
		}
		if _, err := w.Values.Sum(); err != nil {
			return err
		}
		if _, err := sorted.Size(); err != nil {
			return err
		}
		snapshot, err := collection.NewResults(w.Session, w.Items).Snapshot()
		if err != nil {
			return err
		}
		if _, _, err := snapshot.Average(util.ItemScore); err != nil {
			return err
		}
		if err := w.Session.Refresh(context.Background()); err != nil {
			return err
		}
	}

	s := st.Coordinator().Stats()
	fmt.Println("NOTIFIERS")
	fmt.Printf("  %-22s: %d\n", "Notifiers", s.Notifiers)
	fmt.Printf("  %-22s: %d\n", "Pending Events", s.PendingEvents)
	fmt.Printf("  %-22s: %d\n", "Runs", s.Runs)
	fmt.Printf("  %-22s: %s\n", "Mean Run", s.MeanRun)
	fmt.Printf("  %-22s: %s\n", "P99 Run", s.P99Run)
	fmt.Printf("  %-22s: %s\n", "Max Run", s.MaxRun)
	fmt.Printf("  %-22s: %d\n", "Delivered Changes", changes)
	fmt.Println()

	fmt.Println("METRICS")
	metrics.WritePrometheus(os.Stdout, viper.GetBool("process-metrics"))
	return nil
}
