package main

import (
	"fmt"
	"os"

	"github.com/franz/photo-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "plc",
		Short: "Photo Library Cleaner - find and safely remove duplicate photos",
		Long: `plc (Photo Library Cleaner) is a deterministic, resumable duplicate
photo remover. It scans one or more photo collections, finds files that are
byte-for-byte identical after fingerprint pre-filtering, keeps the best copy
of each and moves the rest to a quarantine directory instead of deleting them.

The pipeline runs in three independent, re-runnable phases:
  scan     fingerprint files, verify duplicates, pick the original of each group
  flag     mark verified duplicates for removal (database only, no file I/O)
  execute  move flagged files to quarantine, mirroring their directory layout`,
		Version: Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/plc.yaml)")
	rootCmd.PersistentFlags().String("db", "plc-state.db", "state database file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("plc")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("PLC")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
