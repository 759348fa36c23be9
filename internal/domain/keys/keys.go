// Package keys holds the terminal/Viper key strings used across Tidarr.
package keys

// Terminal keys
const (
	ConfigFile  string = "config-file"
	DebugLevel  string = "debug-level"
	DownloadDir string = "download-dir"
	SessionFile string = "session-file"
	DBFile      string = "db-file"

	MediaType string = "type"
	Quality   string = "quality"
	Force     string = "force"

	AriaPath       string = "aria2c-path"
	Concurrency    string = "concurrency-limit"
	SplitPerFile   string = "split-per-file"
	DLRetries      string = "dl-retries"
	RetryBackoff   string = "retry-backoff"
	RateLimitWait  string = "rate-limit-wait"
	RequestTimeout string = "request-timeout"
)

// OAuth keys
const (
	ClientID     string = "client-id"
	ClientSecret string = "client-secret"
)
