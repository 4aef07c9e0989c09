// README: bench: engine latency on synthetic fleet state, checked against the tick interval.
package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"resortdispatch/internal/config"
	"resortdispatch/internal/modules/matching"
)

type benchOptions struct {
	requests   int
	workers    int
	iterations int
	strategy   string
	seed       int64
}

var benchOpts benchOptions

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure one matching pass on synthetic state",
	RunE:  bench,
}

func init() {
	f := benchCmd.Flags()
	f.IntVar(&benchOpts.requests, "requests", 100, "waiting requests")
	f.IntVar(&benchOpts.workers, "workers", 30, "drivers")
	f.IntVar(&benchOpts.iterations, "iterations", 50, "passes to time")
	f.StringVar(&benchOpts.strategy, "strategy", "", "greedy or optimal (default from config)")
	f.Int64Var(&benchOpts.seed, "seed", 1, "synthetic state seed")
	rootCmd.AddCommand(benchCmd)
}

type benchResult struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

func bench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d := cfg.Dispatch
	if benchOpts.strategy != "" {
		d.Strategy = benchOpts.strategy
	}
	if benchOpts.iterations <= 0 {
		return fmt.Errorf("iterations must be positive")
	}
	engine := matching.NewEngine(d, matching.NewCostModel(d.Cost, matching.ZeroJitter), nil)
	budget := time.Duration(d.TickSeconds) * time.Second

	var results []benchResult
	for _, size := range benchSizes(benchOpts.requests, benchOpts.workers) {
		results = append(results, runBenchCase(engine, d, size[0], size[1], budget))
	}

	fmt.Println("\n== Summary ==")
	pass, fail := 0, 0
	for _, r := range results {
		fmt.Printf("%-28s %-4s p99=%-12s %s\n", r.Name, r.Status, r.Latency, r.Note)
		if r.Status == "PASS" {
			pass++
		} else {
			fail++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d\n", pass, fail)
	if fail > 0 {
		return fmt.Errorf("%d bench case(s) exceeded the %s tick", fail, budget)
	}
	return nil
}

// benchSizes ramps up to the requested size so the growth curve is visible.
func benchSizes(requests, workers int) [][2]int {
	var out [][2]int
	for _, div := range []int{4, 2, 1} {
		r, w := requests/div, workers/div
		if r == 0 || w == 0 {
			continue
		}
		out = append(out, [2]int{r, w})
	}
	return out
}

func runBenchCase(engine *matching.Engine, d config.DispatchConfig, requests, workers int, budget time.Duration) benchResult {
	snap := matching.SyntheticSnapshot(benchOpts.seed, requests, workers, time.Now())
	lat := make([]time.Duration, 0, benchOpts.iterations)
	var last matching.Result
	for i := 0; i < benchOpts.iterations; i++ {
		start := time.Now()
		last = engine.ComputeAssignment(snap)
		lat = append(lat, time.Since(start))
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	p50 := lat[len(lat)/2]
	p99 := lat[(len(lat)*99)/100]

	res := benchResult{
		Name:    fmt.Sprintf("R=%d W=%d %s", requests, workers, d.Strategy),
		Latency: p99,
		Note: fmt.Sprintf("p50=%s candidates=%d pairs=%d strategy=%s",
			p50, last.Candidates, len(last.Pairs), last.Strategy),
		Status: "PASS",
	}
	if p99 > budget {
		res.Status = "FAIL"
	}
	return res
}
