// Command forecast extends a wildlife census table with synthetic survey
// years predicted from per-species lags.
//
// Usage:
//
//	CENSUS_SPECIES=elephant,zebra forecast run --years 3
//	CENSUS_SPECIES=elephant,zebra forecast serve
package main

import (
	"os"
)

// Version is set by build flags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
