package config

import (
	"flag"
	"os"

	"github.com/fieldstock/shiftledger/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// os.Args is filtered to the flags owned here so the -c/-config flag and
// anything else stays untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the sync server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local ledger database")
	fs.StringVar(&cfg.KeyringDir, "k", cfg.KeyringDir, "directory for the local keyring")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
