package cfg

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"tidarr/internal/api"
	"tidarr/internal/app"
	"tidarr/internal/auth"
	"tidarr/internal/database"
	"tidarr/internal/domain/keys"
	"tidarr/internal/downloads"
	"tidarr/internal/manifest"
	"tidarr/internal/net"
	"tidarr/internal/repo"
)

// openLedger opens the downloads database at the configured path, creating
// parent directories as needed. The ledger is optional, callers log and carry
// on when it cannot be opened.
func openLedger() (*database.Database, error) {
	path := viper.GetString(keys.DBFile)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return database.Open(path)
}

// buildHTTPClient constructs the shared retrying transport from flags.
func buildHTTPClient() *net.Client {
	return net.New(
		viper.GetDuration(keys.RequestTimeout),
		viper.GetInt(keys.DLRetries),
		viper.GetDuration(keys.RetryBackoff),
		viper.GetDuration(keys.RateLimitWait),
	)
}

// buildSessionManager constructs the auth manager over its store.
func buildSessionManager(client *net.Client) *auth.SessionManager {
	store := auth.NewSessionStore(viper.GetString(keys.SessionFile))
	m := auth.NewSessionManager(client,
		store,
		viper.GetString(keys.ClientID),
		viper.GetString(keys.ClientSecret),
	)
	m.LoadOrCreate()
	return m
}

// buildPipeline assembles the full download pipeline.
func buildPipeline(db *database.Database) *app.Pipeline {
	client := buildHTTPClient()

	var store *repo.DownloadStore
	if db != nil {
		store = repo.GetDownloadStore(db.DB)
	}

	return &app.Pipeline{
		Auth:     buildSessionManager(client),
		API:      api.NewClient(client),
		Resolver: manifest.NewResolver(client),
		Fetcher: downloads.NewAria2Fetcher(
			viper.GetString(keys.AriaPath),
			viper.GetInt(keys.Concurrency),
			viper.GetInt(keys.SplitPerFile),
		),
		Store:        store,
		DownloadDir:  viper.GetString(keys.DownloadDir),
		Force:        viper.GetBool(keys.Force),
		OnDeviceCode: printDeviceCodePrompt,
	}
}
