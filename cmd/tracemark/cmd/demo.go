package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/tracemark/analysis"
	"github.com/sarchlab/tracemark/examples/kvstore"
	"github.com/sarchlab/tracemark/monitoring"
	"github.com/sarchlab/tracemark/recording"
	"github.com/sarchlab/tracemark/timeline"
	"github.com/sarchlab/tracemark/trace"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an instrumented key-value workload and show its timeline.",
	Run: func(cmd *cobra.Command, args []string) {
		recordPath, _ := cmd.Flags().GetString("record")
		serve, _ := cmd.Flags().GetBool("serve")
		open, _ := cmd.Flags().GetBool("open")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = defaultPort()
		}

		session := trace.NewSession()
		stats := analysis.NewMeasureStats(nil).
			Observe(session.Timeline().(*timeline.List))

		if recordPath != "" {
			backend := recording.NewWriter(recordPath)
			recorder := recording.NewTimelineRecorder(backend)
			recorder.ObserveTimeline(session.Timeline().(*timeline.List))
			recorder.ObserveStore(session.Store())
			atexit.Register(recorder.Flush)
		}

		runWorkload(session)
		printMeasures(session, stats)

		if serve {
			monitor := monitoring.NewMonitor()
			monitor.RegisterTimeline(session.Timeline())
			monitor.RegisterStore(session.Store())
			if port > 0 {
				monitor.WithPortNumber(port)
			}
			if open {
				monitor.WithAutoOpen()
			}
			monitor.StartServer()

			select {}
		}

		session.Close()
		atexit.Exit(0)
	},
}

func runWorkload(session *trace.Session) {
	client := kvstore.New().WithAsyncDelay(5 * time.Millisecond)
	session.Wrap(client)
	defer session.Close()

	session.Start("workload")

	_ = client.Set("user:42", "alice")
	_ = client.Set("user:43", "bob")

	if _, err := client.Get("user:42"); err != nil {
		fmt.Fprintf(os.Stderr, "Get failed: %v\n", err)
	}

	// Two overlapping deferred lookups completing out of order.
	second := client.GetAsync("user:43")
	first := client.GetAsync("user:42")
	_, _ = first.Result()
	_, _ = second.Result()

	done := make(chan struct{})
	client.GetCB("user:99", func(err error, value interface{}) {
		close(done)
	})
	<-done

	session.End("workload")
}

func printMeasures(session *trace.Session, stats *analysis.MeasureStats) {
	fmt.Println("Measures:")
	for _, entry := range session.Timeline().Entries() {
		if entry.Kind != timeline.KindMeasure {
			continue
		}
		fmt.Printf("  %-40s %12v\n", entry.Name, entry.Duration)
	}

	fmt.Println("Totals by method:")
	for _, group := range stats.Groups() {
		fmt.Printf("  %-40s %12v  (%d calls, avg %v)\n",
			group.Key, group.Total, group.Count, group.Average)
	}

	fmt.Printf("Captured records: %d\n", session.Store().Len())
}

func defaultPort() int {
	port, err := strconv.Atoi(os.Getenv("TRACEMARK_PORT"))
	if err != nil {
		return 0
	}

	return port
}

func init() {
	demoCmd.Flags().String("record", "",
		"write the timeline and records into this recording database")
	demoCmd.Flags().Bool("serve", false,
		"keep running and serve the timeline over HTTP")
	demoCmd.Flags().Bool("open", false,
		"open the served timeline in the local browser")
	demoCmd.Flags().Int("port", 0,
		"port for the monitoring server (default TRACEMARK_PORT or a random port)")
	rootCmd.AddCommand(demoCmd)
}
