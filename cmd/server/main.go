package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"covid-dashboard/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "covid-dashboard",
	Short: "Interactive COVID-19 dashboard over the Kaggle CSV snapshot",
	Long: `covid-dashboard loads the COVID-19 CSV tables into memory and serves
an HTML dashboard plus a JSON/PNG API with global trends, a top-10 country
snapshot, daily new cases and deaths, US state trends and WHO region totals.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env DASHBOARD_* overrides it)")
	rootCmd.AddCommand(serveCmd, configCmd)
}

func loadConfig() (*config.Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return config.Load(cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
