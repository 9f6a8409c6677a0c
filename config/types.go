package config

// Log controls service logging.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Auth configures bearer token verification for state changing RPC methods.
// The token subject is the caller address.
type Auth struct {
	HMACSecret    string `toml:"HMACSecret"`
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
	LeewaySecs    int    `toml:"LeewaySecs"`
}

// RateLimit bounds authenticated requests per caller.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Indexer configures the optional SQL activity indexer. An empty DSN disables
// it.
type Indexer struct {
	DSN       string `toml:"DSN"`
	QueueSize int    `toml:"QueueSize"`
}

// Telemetry configures OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Stream configures the websocket notification stream.
type Stream struct {
	HistoryLimit int `toml:"HistoryLimit"`
}
