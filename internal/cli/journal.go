package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/models"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Browse and review past analyses",
	}

	journalCmd.AddCommand(newJournalListCmd(opts))
	journalCmd.AddCommand(newJournalShowCmd(opts))
	journalCmd.AddCommand(newJournalReviewCmd(opts))
	journalCmd.AddCommand(newJournalStatsCmd(opts))
	journalCmd.AddCommand(newJournalDebriefCmd(opts))
	return journalCmd
}

func newJournalListCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			logs := a.Session.Snapshot().Logs
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Vault empty."))
				return nil
			}
			if limit > 0 && len(logs) > limit {
				logs = logs[:limit]
			}
			return renderJournalTable(cmd.OutOrStdout(), logs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many entries")
	return cmd
}

func renderJournalTable(w io.Writer, logs []models.TradeLog) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"ID", "Date", "Pair", "TF", "Directive", "Quality", "Outcome"}),
	)
	for _, l := range logs {
		outcome := "-"
		if l.Review != nil {
			outcome = string(l.Review.Outcome)
		}
		if err := table.Append([]string{
			l.ID,
			time.UnixMilli(l.Timestamp).Format("2006-01-02 15:04"),
			l.DisplayPair(),
			l.Result.Timeframe,
			string(l.Result.TradeDirective),
			strconv.Itoa(l.Result.QualityScore),
			outcome,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func newJournalShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.Session.OpenLog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entry)
			}
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Logged:"), time.UnixMilli(entry.Timestamp).Format(time.RFC1123))
			renderDecision(out, &entry.Result, a.Session.Snapshot().Settings)
			if entry.Review != nil {
				fmt.Fprintf(out, "%s %s %s\n", labelStyle.Render("Review:"), entry.Review.Outcome, entry.Review.Notes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entry as JSON")
	return cmd
}

func newJournalReviewCmd(opts *rootOptions) *cobra.Command {
	var (
		outcome string
		notes   string
	)
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Record the outcome of a logged trade",
		Long: `Record the outcome of a logged trade. Each entry can be reviewed once.
Outcomes: WIN, LOSS, B/E (BREAKEVEN), SKIP (SKIPPED).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := models.ParseOutcome(outcome)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Session.OpenLog(args[0]); err != nil {
				return err
			}
			entry, err := a.Session.SubmitReview(cmd.Context(), o, notes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s marked %s\n",
				bullStyle.Render("Recorded:"), entry.DisplayPair(), entry.Review.Outcome)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outcome, "outcome", "o", "", "WIN, LOSS, B/E or SKIP")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "What happened")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func newJournalStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show win rate over reviewed trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			renderStats(cmd.OutOrStdout(), a.Session.Snapshot().Stats)
			return nil
		},
	}
}

func newJournalDebriefCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "debrief",
		Short: "Ask the coach model to summarise reviewed outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			logs := a.Session.Snapshot().Logs
			if _, err := inference.DebriefInput(logs); errors.Is(err, inference.ErrNothingReviewed) {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No reviewed trades yet."))
				return nil
			}

			debriefer, err := a.Debriefer(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := debriefer.Debrief(cmd.Context(), logs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("JOURNAL DEBRIEF"))
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
