package cli

import (
	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/models"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Account balance and risk per trade",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			renderSettings(cmd.OutOrStdout(), a.Session.Snapshot().Settings)
			return nil
		},
	})

	var (
		balance float64
		risk    float64
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update balance and/or risk percentage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.SettingsPatch
			if cmd.Flags().Changed("balance") {
				patch.AccountBalance = &balance
			}
			if cmd.Flags().Changed("risk") {
				patch.RiskPerTrade = &risk
			}

			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Session.PatchSettings(cmd.Context(), patch)
			if err != nil {
				return err
			}
			renderSettings(cmd.OutOrStdout(), s)
			return nil
		},
	}
	setCmd.Flags().Float64Var(&balance, "balance", models.DefaultAccountBalance, "Account balance in USD")
	setCmd.Flags().Float64Var(&risk, "risk", models.DefaultRiskPerTrade, "Risk per trade in percent")
	setCmd.MarkFlagsOneRequired("balance", "risk")
	settingsCmd.AddCommand(setCmd)

	return settingsCmd
}
