package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/consts"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		imagePath string
		pair      string
		timeframe string
		notes     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Diagnose a chart screenshot",
		Long: `Send a chart screenshot for diagnosis and print the verdict.
Example: vancelle analyze --image eurusd-4h.png --pair EURUSD --timeframe 4H`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := a.Session
			if err := sess.UploadImage(data); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, mutedStyle.Render("Extracting technical structure..."))
			result, err := sess.RequestAnalysis(cmd.Context(), pair, timeframe, notes)
			st := sess.Snapshot()
			if err != nil {
				renderError(cmd.ErrOrStderr(), st)
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			renderDecision(out, result, st.Settings)
			renderError(out, st)
			if st.ActiveLogID != "" {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Journal entry:"), st.ActiveLogID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to the chart screenshot")
	cmd.Flags().StringVarP(&pair, "pair", "p", "", "Currency pair, e.g. EURUSD")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe: "+strings.Join(consts.Timeframes, ", "))
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-text context for the analysis")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw verdict as JSON")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}
