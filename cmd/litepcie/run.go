package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mazrouei/litepcie/bench"
	"github.com/mazrouei/litepcie/datarecording"
	"github.com/mazrouei/litepcie/monitoring"
	"github.com/mazrouei/litepcie/sim"
)

var runFlags = struct {
	testSize    uint64
	descriptors int
	maxPayload  uint64
	reordering  bool
	loopMode    bool
	seed        int64
	timeout     int
	record      bool
	dbPath      string
	logEvents   bool
	monitor     bool
	monitorPort int
	openBrowser bool
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one DMA loopback verification",
	RunE:  runBench,
}

func init() {
	flags := runCmd.Flags()
	flags.Uint64Var(&runFlags.testSize, "size", 4096,
		"number of bytes to transfer")
	flags.IntVar(&runFlags.descriptors, "descriptors", 8,
		"number of descriptors the transfer is split into")
	flags.Uint64Var(&runFlags.maxPayload, "max-payload", 128,
		"maximum split transaction size in bytes")
	flags.BoolVar(&runFlags.reordering, "reordering", true,
		"allow the chipset to reorder split transactions")
	flags.BoolVar(&runFlags.loopMode, "loop", false,
		"run the descriptor tables in loop mode")
	flags.Int64Var(&runFlags.seed, "seed", 1,
		"seed of the reordering random source")
	flags.IntVar(&runFlags.timeout, "timeout", 1_000_000,
		"wait deadline in ticks, 0 waits forever")
	flags.BoolVar(&runFlags.record, "record", false,
		"record completions and the report into a SQLite database")
	flags.StringVar(&runFlags.dbPath, "db-path", "",
		"database name to record into, empty picks a unique name")
	flags.BoolVar(&runFlags.logEvents, "log-events", false,
		"log every simulation event to stderr")
	flags.BoolVar(&runFlags.monitor, "monitor", false,
		"serve the monitoring API while the simulation runs")
	flags.IntVar(&runFlags.monitorPort, "monitor-port", defaultMonitorPort(),
		"port of the monitoring server, 0 picks a random port")
	flags.BoolVar(&runFlags.openBrowser, "open-browser", false,
		"open the monitoring dashboard in the default browser")

	rootCmd.AddCommand(runCmd)
}

func defaultMonitorPort() int {
	v := os.Getenv("LITEPCIE_MONITOR_PORT")
	if v == "" {
		return 0
	}

	port, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}

	return port
}

func runBench(cmd *cobra.Command, _ []string) error {
	builder := bench.MakeBuilder().
		WithTestSize(runFlags.testSize).
		WithDescriptorCount(runFlags.descriptors).
		WithMaxPayload(runFlags.maxPayload).
		WithReordering(runFlags.reordering).
		WithLoopMode(runFlags.loopMode).
		WithSeed(runFlags.seed).
		WithTimeout(runFlags.timeout)

	if runFlags.record {
		builder = builder.WithDataRecorder(
			datarecording.New(runFlags.dbPath))
	}

	var monitor *monitoring.Monitor
	if runFlags.monitor {
		monitor = monitoring.NewMonitor().
			WithPortNumber(runFlags.monitorPort)
		if runFlags.openBrowser {
			monitor = monitor.WithBrowser()
		}
		builder = builder.WithMonitor(monitor)
	}

	b := builder.Build("Bench")

	if runFlags.logEvents {
		b.Engine.AcceptHook(sim.NewEventLogger(
			log.New(os.Stderr, "", 0)))
	}

	if monitor != nil {
		monitor.StartServer()
	}

	report, err := b.Run()
	if err != nil {
		return err
	}

	printReport(cmd, report)

	if report.Errors > 0 || report.TimedOut {
		return fmt.Errorf("verification failed")
	}

	return nil
}

func printReport(cmd *cobra.Command, report bench.VerificationReport) {
	cmd.Printf("shift:       %d\n", report.Shift)
	cmd.Printf("length:      %d words\n", report.Length)
	cmd.Printf("errors:      %d\n", report.Errors)
	cmd.Printf("reader irqs: %d\n", report.ReaderIRQs)
	cmd.Printf("writer irqs: %d\n", report.WriterIRQs)
	cmd.Printf("timed out:   %v\n", report.TimedOut)
}
