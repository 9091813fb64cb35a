package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	config "github.com/mwantia/chansync/internal/config/server"
)

var envFiles = []string{".env", ".env.local"}

// initConfig points viper at the explicit config file or at chansync.yaml in
// the search paths. Environment variables use the CHANSYNC_ prefix with
// nested keys joined by underscores, e.g. CHANSYNC_CHANNEL_TOKEN.
func initConfig(path string) error {
	dirs := config.SearchPaths()

	if path != "" {
		viper.SetConfigFile(path)
		dirs = []string{".", filepath.Dir(path)}
	} else {
		viper.SetConfigName(config.ConfigName)
		viper.SetConfigType("yaml")
		for _, dir := range dirs {
			viper.AddConfigPath(dir)
		}
	}

	loadEnvFiles(dirs)

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// loadEnvFiles loads .env files without overriding variables that are
// already set, so earlier directories win.
func loadEnvFiles(dirs []string) {
	for _, dir := range dirs {
		dir = os.ExpandEnv(dir)
		for _, name := range envFiles {
			envPath := filepath.Join(dir, name)
			if _, err := os.Stat(envPath); err != nil {
				continue
			}
			godotenv.Load(envPath)
		}
	}
}
