package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/di"
)

var (
	configFile  string
	verbose     bool
	memoryStore bool
)

var rootCmd = &cobra.Command{
	Use:   "phishfinder",
	Short: "Phishing detection backend",
	Long: `phishfinder analyzes submitted emails for phishing indicators: suspicious
and mismatched links, threat-intelligence verdicts, sender domain
authentication (SPF, DKIM, DMARC) and social-engineering language.

Example:
  phishfinder serve
  phishfinder analyze message.eml --memory
  phishfinder dns example.com`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "Keep results in memory instead of the configured store")
}

// loadConfig reads configuration, honouring --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		v := cfg.GetViper()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	if verbose {
		cfg.Set("logging.level", "debug")
	}
	if memoryStore {
		cfg.Set("storage.type", "memory")
	}
	return cfg, nil
}

// buildCLIContainer prepares a container for one-shot commands, logging to the console
func buildCLIContainer() (*dig.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Set("logging.format", "console")
	return di.BuildContainer(cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
