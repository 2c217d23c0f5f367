package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mutex-stress",
	Short: "Hammer a store with FastMutex clients and check mutual exclusion",
	Long: `mutex-stress starts a number of FastMutex clients that repeatedly lock,
hold and release the same set of keys on one shared store (memory, redis
or nats). It counts overlapping critical sections, summarizes the protocol
stats and lists the Y records left behind.

Every flag can also be set through a FASTMUTEX_* environment variable or a
.env file, e.g. FASTMUTEX_REDIS_ADDR=localhost:6379.`,
	SilenceUsage: true,
	PreRunE:      processConfig,
	RunE:         run,
}

func init() {
	cobra.OnInitialize(initConfig)
	setupFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
