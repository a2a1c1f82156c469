// stockcards — resolve free-text stock queries into display cards.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finbrowse/stockcards/api"
	"github.com/finbrowse/stockcards/internal/card"
	"github.com/finbrowse/stockcards/internal/config"
	"github.com/finbrowse/stockcards/internal/resolve"
	"github.com/finbrowse/stockcards/internal/upstream/finnhub"
	"github.com/finbrowse/stockcards/internal/upstream/polygon"
	"github.com/finbrowse/stockcards/internal/upstream/wikidata"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockcards",
	Short: "stockcards — free-text stock lookup over Wikidata, Finnhub, and Polygon",
	Long: `stockcards resolves a free-text query (ticker symbol, company name, or
industry) into a small set of listed companies and assembles a per-ticker
card of price, profile, and dividend data from three upstream providers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(moversCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stockcards %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := api.NewServer(cfg)
		return srv.ListenAndServe(cfg.API.Addr())
	},
}

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Resolve a free-text query into ticker candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := resolve.New(finnhub.New(cfg.Providers.Finnhub.APIKey), wikidata.New())

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		set, err := r.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("query %q classified as %s\n", set.Query, set.Kind)
		if !set.Found {
			fmt.Printf("no companies found. %s\n", set.Suggestion)
			return nil
		}
		for _, c := range set.Companies {
			fmt.Printf("  %-8s %s\n", c.Ticker, c.Name)
		}
		return nil
	},
}

// --- Card Command ---

var cardCmd = &cobra.Command{
	Use:   "card [ticker]",
	Short: "Build and print the display card for one ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := card.New(
			finnhub.New(cfg.Providers.Finnhub.APIKey),
			polygon.New(cfg.Providers.Polygon.APIKey),
		)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		c, err := b.Build(ctx, args[0])
		if err != nil {
			return err
		}

		name := c.Symbol
		if c.Profile != nil && c.Profile.Name != "" {
			name = c.Profile.Name
		}
		fmt.Printf("%s (%s)\n", name, c.Symbol)
		if !c.Displayable {
			fmt.Println("  insufficient market data")
			return nil
		}
		printField := func(label string, v *float64, suffix string) {
			if v == nil {
				fmt.Printf("  %-12s —\n", label)
				return
			}
			fmt.Printf("  %-12s %.2f%s\n", label, *v, suffix)
		}
		printField("price", c.Display.Price, "")
		printField("prev close", c.Display.PrevClose, "")
		printField("change", c.Display.ChangePct, "%")
		if len(c.Dividends) > 0 {
			d := c.Dividends[0]
			fmt.Printf("  %-12s $%.2f on %s\n", "dividend", d.CashAmount, d.PayDate)
		}
		return nil
	},
}

// --- Movers Command ---

var moversCmd = &cobra.Command{
	Use:   "movers",
	Short: "Print today's top market gainers",
	RunE: func(cmd *cobra.Command, args []string) error {
		poly := polygon.New(cfg.Providers.Polygon.APIKey)

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		movers, err := poly.Movers(ctx, polygon.DirectionGainers)
		if err != nil {
			return err
		}
		if len(movers) > 6 {
			movers = movers[:6]
		}
		for _, m := range movers {
			fmt.Printf("  %-8s %10.2f  %+.2f%%\n", m.Ticker, m.LastPrice, m.ChangePercent)
		}
		return nil
	},
}
