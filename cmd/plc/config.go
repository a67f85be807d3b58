package main

import (
	"os"

	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PLC_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// applyLogLevel configures the leveled logger from the global flags
func applyLogLevel() (verbose, quiet bool) {
	verbose = viper.GetBool("verbose")
	quiet = viper.GetBool("quiet")
	util.SetVerbose(verbose)
	util.SetQuiet(quiet)
	util.SetColors(util.IsTerminal(os.Stderr.Fd()))
	return verbose, quiet
}

// openStore opens the state database, applying network-optimized pragmas
// automatically when the database lives on a NAS mount
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")

	opts := &store.OpenOptions{}
	if util.IsNetworkPath(dbPath) {
		util.InfoLog("Database is on a network filesystem, applying network optimizations")
		opts.NetworkOptimized = true
	}

	util.InfoLog("Opening database: %s", dbPath)
	return store.OpenWithOptions(dbPath, opts)
}

// newEventLogger creates the JSONL event logger for a command run
func newEventLogger(verbose, quiet bool) *report.EventLogger {
	logLevel := report.LevelInfo
	if quiet {
		logLevel = report.LevelWarning
	} else if verbose {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	return logger
}

// retryConfigFor picks the retry profile for the given paths: the NAS profile
// when any of them is network-mounted, the local default otherwise
func retryConfigFor(paths ...string) *util.RetryConfig {
	for _, p := range paths {
		if p != "" && util.IsNetworkPath(p) {
			util.InfoLog("Network filesystem detected at %s, using NAS retry profile", p)
			return util.NASRetryConfig()
		}
	}
	return util.DefaultRetryConfig()
}
