package server

const (
	// ConfigName is the base name of the configuration file searched in SearchPaths.
	ConfigName = "chansync"
	ConfigFile = ConfigName + ".yaml"
	EnvPrefix  = "CHANSYNC"
)

// SearchPaths lists the directories searched for ConfigFile and .env files, in order.
func SearchPaths() []string {
	return []string{".", "./config", "/etc/chansync", "$HOME/.chansync"}
}
