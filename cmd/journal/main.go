package main

import (
	"fmt"
	"os"

	"github.com/downfa11-org/go-journal/pkg/config"
	"github.com/downfa11-org/go-journal/pkg/metrics"
	"github.com/downfa11-org/go-journal/util"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dirFlag    string
)

func main() {
	defer util.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:           "journal",
		Short:         "Inspect and exercise segment journals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to YAML/JSON config file")
	c.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Journal directory (overrides config)")

	c.AddCommand(inspectCmd(), dumpCmd(), appendCmd(), benchCmd(), retainCmd())
	return c
}

// loadConfig applies the --dir override on top of the loaded configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dirFlag != "" {
		cfg.Dir = dirFlag
	}
	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}
	return cfg, nil
}
