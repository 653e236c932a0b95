// Package cmd provides the CLI commands for the aegis engine.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-gate/aegis/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "aegis - policy-based access control engine",
	Long: `aegis is a multi-tenant, policy-based access control engine for
AI agent platforms. Policies match actors, resources, and actions with
glob patterns and context conditions; every denial is audited.

Quick start:
  1. Create a config file: aegis.yaml
  2. Check a permission: aegis check --tenant t1 --actor u1 --resource doc:1 --action read

Configuration:
  Config is loaded from aegis.yaml in the current directory,
  $HOME/.aegis/, or /etc/aegis/.

  Environment variables can override config values with the AEGIS_ prefix.
  Example: AEGIS_AUDIT_OUTPUT=sqlite:///var/lib/aegis/audit.db

Commands:
  check       Evaluate a permission request
  policies    Inspect and import policies
  audit       Query, export, and prune the audit log
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aegis.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
