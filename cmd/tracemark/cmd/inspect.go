package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tracemark/recording"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [recording]",
	Short: "Dump the entries, measures, and records of a recording database.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entriesOnly, _ := cmd.Flags().GetBool("entries")
		recordsOnly, _ := cmd.Flags().GetBool("records")
		showAll := !entriesOnly && !recordsOnly

		reader, err := recording.NewReader(args[0])
		if err != nil {
			log.Fatalf("Error opening recording: %v", err)
		}
		defer reader.Close()

		if showAll || entriesOnly {
			dumpEntries(reader)
		}

		if showAll || recordsOnly {
			dumpRecords(reader)
		}
	},
}

func dumpEntries(reader *recording.Reader) {
	reader.MapTable(recording.EntryTableName, recording.EntryRow{})

	rows, err := reader.ReadAll(context.Background(), recording.EntryTableName)
	if err != nil {
		log.Fatalf("Error reading entries: %v", err)
	}

	fmt.Printf("Entries (%d):\n", len(rows))
	for _, row := range rows {
		entry := row.(recording.EntryRow)
		switch entry.Kind {
		case "measure":
			fmt.Printf("  measure %-40s %12v  (%s -> %s)\n",
				entry.Name,
				time.Duration(entry.DurationNS),
				entry.StartMark,
				entry.EndMark)
		default:
			fmt.Printf("  mark    %-40s %s\n",
				entry.Name,
				time.Unix(0, entry.TimeNS).Format(time.RFC3339Nano))
		}
	}
}

func dumpRecords(reader *recording.Reader) {
	reader.MapTable(recording.RecordTableName, recording.RecordRow{})

	rows, err := reader.ReadAll(context.Background(), recording.RecordTableName)
	if err != nil {
		log.Fatalf("Error reading records: %v", err)
	}

	fmt.Printf("Records (%d):\n", len(rows))
	for _, row := range rows {
		record := row.(recording.RecordRow)
		outcome := record.Response
		if record.Error != "" {
			outcome = "error: " + record.Error
		}
		fmt.Printf("  %-40s request=%s outcome=%s\n",
			record.Name, record.Request, outcome)
	}
}

func init() {
	inspectCmd.Flags().Bool("entries", false,
		"only dump timeline entries")
	inspectCmd.Flags().Bool("records", false,
		"only dump captured records")
	rootCmd.AddCommand(inspectCmd)
}
