package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/npipolicy/internal/journal"
)

var (
	replayRun    string
	replayGroup  string
	replayScope  string
	replayFormat string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalVerifyCmd, journalReplayCmd)
	journalReplayCmd.Flags().StringVar(&replayRun, "run", "", "Only entries of this run id")
	journalReplayCmd.Flags().StringVar(&replayGroup, "group", "", "Only entries of this trigger group")
	journalReplayCmd.Flags().StringVar(&replayScope, "scope", "", "Only entries of this scope (global or a district)")
	journalReplayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Transition journal operations",
	Long:  "Commands for verifying and inspecting the hash-chained journal of\nadaptive regime transitions.",
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of a journal",
	Long:  "Walks the JSONL journal and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalVerify,
}

var journalReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Show recorded transitions as a timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalReplay,
}

func journalPath(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return cfg.Journal.Path
}

func runJournalVerify(cmd *cobra.Command, args []string) error {
	result := journal.Verify(journalPath(args))
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runJournalReplay(cmd *cobra.Command, args []string) error {
	result, err := journal.Replay(journalPath(args), journal.Filter{
		RunID: replayRun,
		Group: replayGroup,
		Scope: replayScope,
	})
	if err != nil {
		return err
	}
	return printResult(replayFormat,
		func() string { return journal.FormatTimeline(result) },
		func() (string, error) { return journal.FormatJSON(result) })
}
