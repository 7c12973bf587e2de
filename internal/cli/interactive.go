package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/internal/app"
	"github.com/dyike/VancelleGo/internal/session"
)

func newInteractiveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Start interactive mode",
		Long:    `Start an interactive session: upload a chart, read the verdict and log the outcome.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd, opts)
		},
	}
}

func runInteractiveMode(cmd *cobra.Command, opts *rootOptions) error {
	a, err := opts.openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("VANCELLE TRADES"))
	fmt.Fprintln(out, mutedStyle.Render("Institutional chart diagnostics. Ctrl+C to exit."))

	for {
		action, err := PromptForAction()
		if err != nil {
			return promptExit(err)
		}

		switch action {
		case actionAnalyze:
			err = interactiveAnalyze(cmd.Context(), out, a)
		case actionJournal:
			err = interactiveJournal(cmd.Context(), out, a)
		case actionStats:
			renderStats(out, a.Session.Snapshot().Stats)
		case actionSettings:
			err = interactiveSettings(cmd.Context(), out, a)
		case actionExit:
			fmt.Fprintln(out, "Session closed.")
			return nil
		}

		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
		fmt.Fprintln(out)
	}
}

// promptExit treats Ctrl+C at a prompt as a normal exit.
func promptExit(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return nil
	}
	return err
}

func interactiveAnalyze(ctx context.Context, out io.Writer, a *app.App) error {
	path, err := PromptForImage()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	sess := a.Session
	if err := sess.UploadImage(data); err != nil {
		return err
	}

	in, err := PromptForIntake()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, mutedStyle.Render("Extracting technical structure..."))
	result, err := sess.RequestAnalysis(ctx, in.Pair, in.Timeframe, in.Notes)
	st := sess.Snapshot()
	if err != nil {
		renderError(out, st)
		return nil
	}
	renderDecision(out, result, st.Settings)
	renderError(out, st)

	if st.ActiveLogID == "" {
		return nil
	}
	return interactiveReview(ctx, out, sess)
}

func interactiveReview(ctx context.Context, out io.Writer, sess *session.Session) error {
	outcome, notes, err := PromptForReview()
	if errors.Is(err, errReviewLater) {
		fmt.Fprintln(out, mutedStyle.Render("Saved to journal. Review it later with `vancelle journal review`."))
		return nil
	}
	if err != nil {
		return err
	}
	entry, err := sess.SubmitReview(ctx, outcome, notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s marked %s\n", bullStyle.Render("Recorded:"), entry.DisplayPair(), entry.Review.Outcome)
	return nil
}

func interactiveJournal(ctx context.Context, out io.Writer, a *app.App) error {
	logs := a.Session.Snapshot().Logs
	if len(logs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("Vault empty."))
		return nil
	}
	if err := renderJournalTable(out, logs); err != nil {
		return err
	}

	id, err := PromptForLog(logs)
	if err != nil {
		return err
	}
	entry, err := a.Session.OpenLog(id)
	if err != nil {
		return err
	}
	st := a.Session.Snapshot()
	renderDecision(out, st.Result, st.Settings)
	if entry.Review != nil {
		fmt.Fprintf(out, "%s %s %s\n", labelStyle.Render("Review:"), entry.Review.Outcome, entry.Review.Notes)
		return nil
	}
	return interactiveReview(ctx, out, a.Session)
}

func interactiveSettings(ctx context.Context, out io.Writer, a *app.App) error {
	patch, err := PromptForSettings(a.Session.Snapshot().Settings)
	if err != nil {
		return err
	}
	s, err := a.Session.PatchSettings(ctx, patch)
	if err != nil {
		return err
	}
	renderSettings(out, s)
	return nil
}
