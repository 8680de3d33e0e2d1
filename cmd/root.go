package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessopt/app"
	"github.com/kilianp07/bessopt/config"
	"github.com/kilianp07/bessopt/core/model"
	"github.com/kilianp07/bessopt/infra/logger"
)

var (
	cfgPath    string
	outputDir  string
	efficiency string
)

var rootCmd = &cobra.Command{
	Use:           "bessopt",
	Short:         "Battery storage schedule optimizer",
	Long:          "Computes the cost-minimizing charge and discharge schedule of a battery co-located with load, solar and wind.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.RunE = run
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides output.dir)")
	rootCmd.Flags().StringVar(&efficiency, "efficiency-model", "", "as_specified or round_trip (overrides solver.efficiency_model)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if _, err := os.Stat(path); err != nil && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if efficiency != "" {
		cfg.Solver.Efficiency = model.EfficiencyModel(efficiency)
		if !cfg.Solver.Efficiency.Valid() {
			return fmt.Errorf("unknown efficiency model %q", efficiency)
		}
	}
	svc, err := app.New(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	sched, err := svc.Pipeline.Run(ctx)
	if sched != nil {
		cost := "N/A"
		if sched.CostAvailable {
			cost = fmt.Sprintf("%.2f", sched.TotalCost)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d steps, total cost %s, outputs in %s\n",
			sched.RunID, sched.Steps, cost, cfg.Output.Dir)
	}
	return err
}
