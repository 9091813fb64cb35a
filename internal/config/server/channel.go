package server

// ChannelServerConfig describes how to reach the channel relay bridge.
type ChannelServerConfig struct {
	URL       string `mapstructure:"url"        yaml:"url"`
	EventsURL string `mapstructure:"events_url" yaml:"events_url"` // Defaults to URL with a ws(s) scheme
	Token     string `mapstructure:"token"      yaml:"token"`
	ChannelID int64  `mapstructure:"channel_id" yaml:"channel_id"`
	Buffer    int    `mapstructure:"buffer"     yaml:"buffer"`
	Timeout   string `mapstructure:"timeout"    yaml:"timeout"`
}
