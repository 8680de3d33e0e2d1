package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessopt/app"
	"github.com/kilianp07/bessopt/infra/logger"
	"github.com/kilianp07/bessopt/infra/market"
)

var (
	fetchStart string
	fetchEnd   string
	fetchOut   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download market data from smard.de into a TSV file",
	RunE:  fetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "range start, date or timestamp (default yesterday 00:00)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "range end, date or timestamp (default today 00:00)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output file (default market.path)")
	rootCmd.AddCommand(fetchCmd)
}

func fetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc := cfg.Market.SMARD
	if fetchStart != "" {
		sc.Start = fetchStart
	}
	if fetchEnd != "" {
		sc.End = fetchEnd
	}
	out := cfg.Market.Path
	if fetchOut != "" {
		out = fetchOut
	}

	client, err := app.NewSMARDClient(cfg.Market)
	if err != nil {
		return err
	}
	loc := cfg.Market.Location()
	start, end := app.ResolveRange(sc, time.Now().In(loc), loc, logger.New("fetch"))
	points, err := client.Fetch(ctx, start, end)
	if err != nil {
		return err
	}
	if err := market.SaveTSV(out, points); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d points to %s\n", len(points), out)
	return nil
}
