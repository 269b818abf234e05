// Command bench drives configurable read/write workloads against the
// B+-tree store, grounded on intellect4all-storage-engines's
// cmd/benchmark but targeting this module's single engine instead of
// comparing several.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/intellect4all/bptreekv/common/benchmark"
	"github.com/intellect4all/bptreekv/kvstore"
)

func main() {
	quick := flag.Bool("quick", false, "Run quick benchmarks (shorter duration, fewer keys)")
	workload := flag.String("workload", "all", "Workload to run (all, or one of the Config.Name values)")
	duration := flag.Duration("duration", 0, "Override each workload's duration")
	concurrency := flag.Int("concurrency", 0, "Override each workload's concurrency")
	dir := flag.String("dir", "", "Directory to hold the benchmark database file (default: a temp dir)")
	flag.Parse()

	var configs []benchmark.Config
	if *quick {
		configs = benchmark.QuickWorkloads()
	} else {
		configs = benchmark.StandardWorkloads()
	}
	if *duration > 0 {
		for i := range configs {
			configs[i].Duration = *duration
		}
	}
	if *concurrency > 0 {
		for i := range configs {
			configs[i].Concurrency = *concurrency
		}
	}
	if *workload != "all" {
		filtered := configs[:0]
		for _, c := range configs {
			if c.Name == *workload {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			fmt.Printf("unknown workload: %s\n", *workload)
			os.Exit(1)
		}
		configs = filtered
	}

	dbDir := *dir
	if dbDir == "" {
		var err error
		dbDir, err = os.MkdirTemp("", "bptreekv-bench-*")
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer os.RemoveAll(dbDir)
	}

	fmt.Println("B+-Tree Store Benchmark Suite")
	fmt.Println("=============================")

	results := make([]*benchmark.Result, 0, len(configs))
	for _, cfg := range configs {
		path := filepath.Join(dbDir, cfg.Name+".db")
		os.Remove(path)

		db, err := kvstore.Create(path, kvstore.DefaultOption())
		if err != nil {
			fmt.Printf("[%s] create failed: %v\n", cfg.Name, err)
			continue
		}
		bucket, err := db.CreateBucket("bench")
		if err != nil {
			fmt.Printf("[%s] bucket create failed: %v\n", cfg.Name, err)
			db.Close()
			continue
		}

		fmt.Printf("\n=== %s ===\n", cfg.Name)
		b := benchmark.NewBenchmark(db, bucket, cfg)
		res, err := b.Run()
		db.Close()
		if err != nil {
			fmt.Printf("[%s] run failed: %v\n", cfg.Name, err)
			continue
		}
		results = append(results, res)
	}

	printSummary(results)
}

func printSummary(results []*benchmark.Result) {
	fmt.Println("\nSummary")
	fmt.Println("=======")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "workload\tops/sec\tp50 read\tp99 read\tp50 write\tp99 write\tfree extents")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.0f\t%v\t%v\t%v\t%v\t%d\n",
			r.Config.Name, r.OpsPerSec,
			r.ReadLatency.P50, r.ReadLatency.P99,
			r.WriteLatency.P50, r.WriteLatency.P99,
			r.EngineStats.FreeExtents)
	}
	w.Flush()
}
