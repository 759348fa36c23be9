package cfg

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tidarr/internal/domain/consts"
	"tidarr/internal/domain/keys"
)

// initProgramFlags sets up the primary program flags and binds them to Viper.
func initProgramFlags(cmd *cobra.Command) error {
	pf := cmd.PersistentFlags()

	pf.String(keys.ConfigFile, "", "Optional config file (any Viper-supported format)")
	pf.Int(keys.DebugLevel, 0, "Debug level (0 - 2)")
	pf.String(keys.DownloadDir, defaultDownloadDir(), "Directory to place finished downloads in")
	pf.String(keys.SessionFile, defaultProgFile("session.json"), "Path to the persisted session file")
	pf.String(keys.DBFile, defaultProgFile("tidarr.db"), "Path to the downloads ledger database")

	// Accelerator
	pf.String(keys.AriaPath, consts.AriaBinary, "Path to the aria2c binary")
	pf.Int(keys.Concurrency, 8, "Maximum concurrent segment downloads")
	pf.Int(keys.SplitPerFile, 4, "Connections per segment file")

	// Transport retry policy
	pf.Int(keys.DLRetries, 3, "Maximum retries for failed requests")
	pf.Duration(keys.RetryBackoff, time.Second, "Base backoff between request retries (linear)")
	pf.Duration(keys.RateLimitWait, 5*time.Second, "Wait when rate limited without a Retry-After header")
	pf.Duration(keys.RequestTimeout, 30*time.Second, "Per-request timeout")

	// OAuth client
	pf.String(keys.ClientID, consts.DefaultClientID, "OAuth client id")
	pf.String(keys.ClientSecret, consts.DefaultClientSecret, "OAuth client secret")

	return viper.BindPFlags(pf)
}

// defaultProgFile returns a path inside the user's Tidarr config directory,
// falling back to the working directory when no config dir exists.
func defaultProgFile(name string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(base, "tidarr", name)
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}
