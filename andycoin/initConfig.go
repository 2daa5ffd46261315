package andycoin

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		LogCLI(err.Error(), 0)
	}
	config.SetEnvPrefix("ANDYCOIN")
	config.AutomaticEnv()
	// the two settings the excluded chat client reads keep their historical names
	_ = config.BindEnv("logLevel", "ANDYCOIN_LOG_LEVEL")
	_ = config.BindEnv("botToken", "DISCORD_TOKEN")

	config.SetDefault("rootDir", filepath.Join(homeDir, "andycoin")+"/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		LogCLI(err.Error(), 4)
	}
	SetDefaults(config)
	// Create our working directory and config file if not exist
	initRootDir(config)
	if err := Touch(config.GetString("rootDir") + "config.yaml"); err != nil {
		LogCLI(err, 2)
	}
	err = config.WriteConfig()
	if err != nil {
		LogCLI(err.Error(), 2)
	}
}

// SetDefaults installs every default the process relies on. Split out so tests can build a
// config without touching the home directory.
func SetDefaults(config *viper.Viper) {
	config.SetDefault("dataFile", "andy_coin_data.json")
	config.SetDefault("legacyDataFile", "andy_coin_data.yaml")
	config.SetDefault("logDir", "logs")
	config.SetDefault("logLevel", 4)
	config.SetDefault("persistIntervalSeconds", 60)
	config.SetDefault("backupOnStart", true)
	config.SetDefault("auditBuffer", 1024)
	config.SetDefault("recentAuditEvents", 100)
	config.SetDefault("apiAddr", "127.0.0.1:1031")
	config.SetDefault("flipRateLimit", 1.0)
	config.SetDefault("flipBurst", 3)
	config.SetDefault("dedupeCapacity", 100000)
	config.SetDefault("deadlockTimeoutSeconds", 30)
	config.SetDefault("headless", false)
	config.SetDefault("pprof", false)
}

// DataPath resolves a file setting against rootDir unless it is already absolute.
func DataPath(config *viper.Viper, key string) string {
	p := config.GetString(key)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(config.GetString("rootDir"), p)
}

func PersistInterval(config *viper.Viper) time.Duration {
	s := config.GetInt("persistIntervalSeconds")
	if s < 1 {
		s = 1
	}
	return time.Duration(s) * time.Second
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			LogCLI(err, 0)
		}
	}
}
