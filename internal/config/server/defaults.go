package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Sync: SyncServerConfig{
			Enabled:         true,
			Interval:        60,
			ConfirmCycles:   3,
			MaxScanMessages: 10000,
			AdoptExisting:   false,
			FollowMoves:     true,
		},

		Channel: ChannelServerConfig{
			URL:       "http://127.0.0.1:8081",
			EventsURL: "",
			Token:     "",
			ChannelID: 0,
			Buffer:    256,
			Timeout:   "15s",
		},

		Storage: StorageServerConfig{
			URL:         "http://127.0.0.1:8080",
			BearerToken: "",
			ChannelID:   0,
			RootPath:    "/",
			PageSize:    500,
			Timeout:     "30s",
		},

		Metadata: MetadataServerConfig{
			Type: "memory",
			SQLite: MetadataSQLiteConfig{
				Path: "./chansync.db",
			},
		},

		HTTP: HTTPServerConfig{
			Enabled: true,
			Address: ":9090",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("sync.enabled", defaults.Sync.Enabled)
	viper.SetDefault("sync.interval", defaults.Sync.Interval)
	viper.SetDefault("sync.confirm_cycles", defaults.Sync.ConfirmCycles)
	viper.SetDefault("sync.max_scan_messages", defaults.Sync.MaxScanMessages)
	viper.SetDefault("sync.adopt_existing", defaults.Sync.AdoptExisting)
	viper.SetDefault("sync.follow_moves", defaults.Sync.FollowMoves)

	viper.SetDefault("channel.url", defaults.Channel.URL)
	viper.SetDefault("channel.events_url", defaults.Channel.EventsURL)
	viper.SetDefault("channel.token", defaults.Channel.Token)
	viper.SetDefault("channel.channel_id", defaults.Channel.ChannelID)
	viper.SetDefault("channel.buffer", defaults.Channel.Buffer)
	viper.SetDefault("channel.timeout", defaults.Channel.Timeout)

	viper.SetDefault("storage.url", defaults.Storage.URL)
	viper.SetDefault("storage.bearer_token", defaults.Storage.BearerToken)
	viper.SetDefault("storage.channel_id", defaults.Storage.ChannelID)
	viper.SetDefault("storage.root_path", defaults.Storage.RootPath)
	viper.SetDefault("storage.page_size", defaults.Storage.PageSize)
	viper.SetDefault("storage.timeout", defaults.Storage.Timeout)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)

	viper.SetDefault("http.enabled", defaults.HTTP.Enabled)
	viper.SetDefault("http.address", defaults.HTTP.Address)
}
