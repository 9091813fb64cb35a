package server

// StorageServerConfig describes the TelDrive instance files are registered in.
type StorageServerConfig struct {
	URL         string `mapstructure:"url"          yaml:"url"`
	BearerToken string `mapstructure:"bearer_token" yaml:"bearer_token"`
	ChannelID   int64  `mapstructure:"channel_id"   yaml:"channel_id"`
	RootPath    string `mapstructure:"root_path"    yaml:"root_path"`
	PageSize    int    `mapstructure:"page_size"    yaml:"page_size"`
	Timeout     string `mapstructure:"timeout"      yaml:"timeout"`
}
