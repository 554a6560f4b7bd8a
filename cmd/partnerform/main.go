// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the partnerform CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is built from the logging config once flags and config are read.
var logger = zap.NewNop()

// rootCmd is the base command for the partnerform CLI.
var rootCmd = &cobra.Command{
	Use:   "partnerform",
	Short: "Fill partnership forms from company websites, documents and notes",
	Long: `partnerform collects information about a company and an intended
partnership (a website, uploaded documents, typed values), asks a
text-generation provider to structure it, and reconciles the answer into a
complete partnership form.

Use extract for a one-shot run and session for the step-by-step wizard.
Provider keys are read from .secrets/<provider>-api-key or from the
provider's usual environment variable (OPENAI_API_KEY and so on).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		logger = l

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("secrets.loaded", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./partnerform.yaml or ~/.config/partnerform/partnerform.yaml)")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of provider key files")
	pf.String("provider", "", "provider: openai, anthropic, cohere, gemini or static")
	pf.String("model", "", "provider model identifier")
	pf.String("base-url", "", "override the provider endpoint")
	pf.Duration("timeout", 0, "bound on one provider call (default 60s)")
	pf.Int("max-retries", 0, "automatic retries after a transport failure (0 or 1)")
	pf.String("schema", "", "schema file (default: built-in partnership schema)")
	pf.String("fallback", "", "candidate source when extraction fails: labels or none")
	pf.String("calllog", "", "SQLite file for the extraction attempt log (default: in memory)")
	pf.Bool("use-container", false, "convert PDF/DOCX/PPTX through the markitdown container")
	pf.Bool("debug", false, "debug logging to stderr")
	pf.String("log-level", "", "minimum log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"provider.name":          "provider",
		"provider.model":         "model",
		"provider.base_url":      "base-url",
		"provider.timeout":       "timeout",
		"provider.max_retries":   "max-retries",
		"extraction.schema_path": "schema",
		"extraction.fallback":    "fallback",
		"calllog.path":           "calllog",
		"gather.use_container":   "use-container",
		"logging.debug":          "debug",
		"logging.level":          "log-level",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("partnerform")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "partnerform"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("PARTNERFORM")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
