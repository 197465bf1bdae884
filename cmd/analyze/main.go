package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ZeroDTE/internal/di"
	"ZeroDTE/internal/domain/models"
	"ZeroDTE/internal/handler/report"
	"ZeroDTE/internal/usecase"
	"ZeroDTE/pkg/config"
	xutil "ZeroDTE/pkg/util"
)

// exit code for a failed primary-instrument fetch
const exitConnectivity = 2

var (
	configPath string
	capital    float64
	sigma      float64
	asJSON     bool
	timeout    time.Duration
	eventsDate string
)

var rootCmd = &cobra.Command{
	Use:   "analyze",
	Short: "One-shot XSP 0DTE analysis",
	Long: `Fetch the market snapshot and the day's event calendar once, then print the
dashboard, the sigma level table and the recommended structure.

Examples:
  analyze --capital 25000 --sigma 1.5
  analyze --json > run.json
  analyze events --date 2025-01-15`,
	SilenceUsage: true,
	RunE:         runAnalyze,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the event gate for a day",
	RunE:  runEvents,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (defaults apply when missing)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	rootCmd.Flags().Float64Var(&capital, "capital", 0, "account capital in USD (config default when 0)")
	rootCmd.Flags().Float64Var(&sigma, "sigma", 0, "sigma multiplier: 1.1, 1.3 or 1.5 (config default when 0)")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
	eventsCmd.Flags().StringVar(&eventsDate, "date", "", "day to check, YYYY-MM-DD (today when empty)")
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, models.ErrConnectivityFailure) {
			os.Exit(exitConnectivity)
		}
		os.Exit(1)
	}
}

// loadConfig reads the YAML file when present; the report owns stdout, so
// logs go to stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		if cfg, err = config.Default(); err != nil {
			return nil, err
		}
		cfg.ApplyEnv(os.Getenv)
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
	cfg.Finnhub.StreamEnabled = false
	return cfg, nil
}

func openDesk(cmd *cobra.Command) (*di.Desk, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	if sigma != 0 && !config.ValidSigmaMultiplier(sigma) {
		return nil, nil, nil, fmt.Errorf("--sigma must be one of %v", config.AllowedSigmaMultipliers)
	}
	desk, err := di.InitializeDesk(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return desk, ctx, cancel, nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	desk, ctx, cancel, err := openDesk(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer desk.Close()

	a, err := desk.Runner.Run(ctx, usecase.RunParams{Capital: capital, Sigma: sigma})
	if errors.Is(err, models.ErrConnectivityFailure) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Connection error: XSP price unavailable, try again.")
		return err
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	return report.Text(out, a, desk.Location)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	desk, ctx, cancel, err := openDesk(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer desk.Close()

	day, err := xutil.ParseDay(eventsDate, time.Now(), desk.Location)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	st, ferr := desk.Runner.EventRisk(ctx, day)
	out := cmd.OutOrStdout()
	if ferr != nil {
		fmt.Fprintf(out, "feed unavailable (%v), gate open\n", ferr)
	}
	fmt.Fprintf(out, "%s  blocked=%t  window=%s\n", xutil.DayKey(day, desk.Location), st.Blocked, st.WindowKind)
	for _, ev := range st.MatchedEvents {
		fmt.Fprintf(out, "  %s  %s\n", ev.LocalTime.In(desk.Location).Format("15:04"), ev.Label)
	}
	return nil
}
