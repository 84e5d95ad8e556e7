package bench

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dObj/cmd/util"
	"github.com/ValentinKolb/dObj/lib/collection"
	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Benchmark the collection accessors",
		Long:    `Runs the primitive list, link list, results and notification operations against an in-memory store and prints the throughput of each. The data file flags are ignored.`,
		RunE:    run,
		PreRunE: processConfig,
	}
	benchItems = 1000
	benchSkip  = make([]string, 0)
	benchCSV   = ""
)

func init() {
	key := "items"
	BenchCmd.Flags().Int(key, 1000, util.WrapString("Number of items in the benchmarked lists"))
	key = "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. primitive-add,list-find)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processConfig(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd, args); err != nil {
		return err
	}

	benchItems = viper.GetInt("items")
	if benchItems < 1 {
		return fmt.Errorf("items must be at least 1, got %d", benchItems)
	}
	benchSkip = strings.Split(viper.GetString("skip"), ",")
	benchCSV = viper.GetString("csv")
	return nil
}

// benchmark is a named operation, run with a fresh workload per invocation
type benchmark struct {
	name string
	op   func(b *testing.B, w *util.Workload)
}

var benchmarks = []benchmark{
	{"primitive-add", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if err := w.Session.Write(func() error { return w.Values.Add(int64(i)) }); err != nil {
				log.Printf("(primitive-add) - error adding value: %v\n", err)
			}
		}
	}},
	{"primitive-get", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if _, err := w.Values.Get(i % benchItems); err != nil {
				log.Printf("(primitive-get) - error getting value: %v\n", err)
			}
		}
	}},
	{"primitive-find", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if _, err := w.Values.Find(int64(i % benchItems)); err != nil {
				log.Printf("(primitive-find) - error finding value: %v\n", err)
			}
		}
	}},
	{"primitive-sum", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if _, err := w.Values.Sum(); err != nil {
				log.Printf("(primitive-sum) - error summing values: %v\n", err)
			}
		}
	}},
	{"list-get", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if _, err := collection.GetValue[int64](w.Links, i%benchItems); err != nil {
				log.Printf("(list-get) - error getting value: %v\n", err)
			}
		}
	}},
	{"list-find", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if _, err := collection.FindValue[int64](w.Links, int64(i%benchItems)); err != nil {
				log.Printf("(list-find) - error finding value: %v\n", err)
			}
		}
	}},
	{"list-move", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			if err := w.Session.Write(func() error { return w.Links.Move(0, benchItems-1) }); err != nil {
				log.Printf("(list-move) - error moving link: %v\n", err)
			}
		}
	}},
	{"results-sort", func(b *testing.B, w *util.Workload) {
		for i := 0; i < b.N; i++ {
			r, err := w.Links.Sort(db.SortClause{Column: util.ItemName, Ascending: i%2 == 0})
			if err == nil {
				_, _, err = r.First()
			}
			if err != nil {
				log.Printf("(results-sort) - error sorting: %v\n", err)
			}
		}
	}},
	{"results-rebuild", func(b *testing.B, w *util.Workload) {
		r := collection.NewQueryResults(w.Session, w.Items.Where().IsNotNull(util.ItemScore))
		for i := 0; i < b.N; i++ {
			err := w.Session.Write(func() error { return w.Items.Set(util.ItemValue, i%benchItems, int64(i)) })
			if err == nil {
				_, err = r.Size()
			}
			if err != nil {
				log.Printf("(results-rebuild) - error rebuilding: %v\n", err)
			}
		}
	}},
	{"results-average", func(b *testing.B, w *util.Workload) {
		r := collection.NewResults(w.Session, w.Items)
		for i := 0; i < b.N; i++ {
			if _, _, err := r.Average(util.ItemScore); err != nil {
				log.Printf("(results-average) - error averaging: %v\n", err)
			}
		}
	}},
	{"notify-refresh", func(b *testing.B, w *util.Workload) {
		token, err := w.Values.AddNotificationCallback(func(notify.ChangeSet) {})
		if err != nil {
			log.Printf("(notify-refresh) - error adding callback: %v\n", err)
			return
		}
		defer token.Unregister()
		for i := 0; i < b.N; i++ {
			err := w.Session.Write(func() error { return w.Values.Set(i%benchItems, int64(i)) })
			if err == nil {
				err = w.Session.Refresh(context.Background())
			}
			if err != nil {
				log.Printf("(notify-refresh) - error refreshing: %v\n", err)
			}
		}
	}},
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetConfig()
	config.DataFile = ""
	if err := config.Validate(); err != nil {
		return err
	}
	common.InitLoggers(config)

	fmt.Println("Benchmark of the dObj collection accessors")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Items: %d\n", benchItems)
	fmt.Println()

	results := make(map[string]testing.BenchmarkResult, len(benchmarks))
	for _, bm := range benchmarks {
		if slices.Contains(benchSkip, bm.name) {
			results[bm.name] = testing.BenchmarkResult{}
			printResult(bm.name, results[bm.name])
			continue
		}
		results[bm.name] = testing.Benchmark(func(b *testing.B) {
			// every invocation runs on its own goroutine and needs its own session
			st, err := util.OpenStore(config)
			if err != nil {
				b.Fatalf("error opening store: %v", err)
			}
			defer st.Close()
			w, err := util.NewWorkload(st, benchItems)
			if err != nil {
				b.Fatalf("error creating workload: %v", err)
			}
			defer w.Close()

			b.ResetTimer()
			bm.op(b, w)
		})
		printResult(bm.name, results[bm.name])
	}

	if benchCSV != "" {
		if err := writeResultsToCSV(benchCSV, results); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", benchCSV)
	}
	return nil
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "Items"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, bm := range benchmarks {
		result := results[bm.name]
		var nsPerOp, opsPerSec float64
		skipped := "false"
		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			bm.name,
			strconv.FormatFloat(nsPerOp, 'f', 0, 64),
			time.Duration(nsPerOp).String(),
			strconv.FormatFloat(opsPerSec, 'f', 0, 64),
			skipped,
			strconv.Itoa(benchItems),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
