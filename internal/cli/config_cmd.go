package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/consts"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cmd.OutOrStdout(), opts.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), opts.cfg)
		},
	})

	return configCmd
}

func configured(key string) string {
	if key == "" {
		return "not configured"
	}
	return "configured"
}

func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, titleStyle.Render("Current Vancelle Configuration"))
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Log File:             %s\n", cfg.LogFile)
	fmt.Fprintf(w, "Log Level:            %s\n", cfg.LogLevel)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "Model:                %s\n", cfg.Model)
	fmt.Fprintf(w, "Backend URL:          %s\n", cfg.BackendURL)
	fmt.Fprintf(w, "Max Tokens:           %d\n", cfg.MaxTokens)
	fmt.Fprintf(w, "Debrief Provider:     %s\n", cfg.DebriefProvider)
	fmt.Fprintf(w, "Debrief Model:        %s\n", cfg.DebriefModel)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Store Backend:        %s\n", cfg.StoreBackend)
	switch cfg.StoreBackend {
	case consts.BackendSQLite:
		fmt.Fprintf(w, "SQLite Path:          %s\n", cfg.ResolvedSQLitePath())
	case consts.BackendRedis:
		fmt.Fprintf(w, "Redis:                %s\n", cfg.RedisURL)
	}
	fmt.Fprintf(w, "HTTP Address:         %s\n", cfg.HTTPAddr)
	fmt.Fprintf(w, "Debug Mode:           %t\n", cfg.Debug)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gemini API:           %s\n", configured(cfg.GeminiAPIKey))
	fmt.Fprintf(w, "OpenAI API:           %s\n", configured(cfg.OpenAIAPIKey))
	fmt.Fprintf(w, "DeepSeek API:         %s\n", configured(cfg.DeepSeekAPIKey))
}

func validateConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "Validating Vancelle configuration...")

	fmt.Fprint(w, "Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Fprintln(w, bullStyle.Render("ok"))

	fmt.Fprint(w, "Checking settings... ")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return err
	}
	fmt.Fprintln(w, bullStyle.Render("ok"))

	fmt.Fprint(w, "Checking inference credentials... ")
	if err := cfg.ValidateInference(); err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return err
	}
	fmt.Fprintln(w, bullStyle.Render("ok"))

	fmt.Fprint(w, "Checking debrief credentials... ")
	var cfgErr *config.ConfigurationError
	if err := cfg.ValidateDebrief(); errors.As(err, &cfgErr) {
		fmt.Fprintln(w, waitStyle.Render("missing"))
		fmt.Fprintf(w, "  %s (journal debrief disabled)\n", cfgErr.Error())
	} else if err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return err
	} else {
		fmt.Fprintln(w, bullStyle.Render("ok"))
	}

	fmt.Fprintln(w, "Configuration is valid.")
	return nil
}
