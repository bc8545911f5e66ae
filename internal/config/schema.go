package config

// Config is the top-level YAML structure.
type Config struct {
	Server    ServerConf    `yaml:"server"`
	Bus       BusConf       `yaml:"bus"`
	Storage   StorageConf   `yaml:"storage"`
	Query     QueryConf     `yaml:"query"`
	Allowlist AllowlistConf `yaml:"allowlist"`
	Uploader  UploaderConf  `yaml:"uploader"`
}

// ServerConf holds the listen address and the public base URL pagination
// links are built against.
type ServerConf struct {
	Addr        string `yaml:"addr"`
	ServiceBase string `yaml:"service_base"`
}

// BusConf points at the upstream event bus.
type BusConf struct {
	Base           string `yaml:"base"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheDays      int    `yaml:"cache_days"`
}

// StorageConf names the object cache bucket.
type StorageConf struct {
	Bucket string `yaml:"bucket"`
}

// QueryConf holds the queryable date window and the process-wide source
// exclusion list.
type QueryConf struct {
	EarliestDate    string   `yaml:"earliest_date"`
	ExcludedSources []string `yaml:"excluded_sources"`
}

// AllowlistConf selects where the source allowlist comes from: an
// artifact URL fetched once at startup, or a local file watched for
// changes. File wins when both are set.
type AllowlistConf struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
}

// UploaderConf holds tunable persistence-queue settings.
type UploaderConf struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}
