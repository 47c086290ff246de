// Command loom manages a library database and its CRDT operation log.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/loomdb/loom/internal/location"
)

var (
	cfgFile string
	logger  *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Library database and sync operation log tooling",
	Long: `loom manages a library database: the relational snapshot of devices,
locations, objects, file paths, tags, and labels, plus the CRDT
operation log that lets libraries synchronize across devices.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		logger = newLogger()
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .loom/loom.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the library database")
	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig loads configuration from file and environment. Every key
// has a default so loom runs without any config file at all.
func initConfig() error {
	viper.SetDefault("db_path", filepath.Join(".loom", "library.db"))
	viper.SetDefault("device_id_file", filepath.Join(".loom", "device_id"))
	viper.SetDefault("page_size", 1000)
	viper.SetDefault("dashboard.port", 8080)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("metadata.recovery", "strict")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("loom")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".loom")
		viper.AddConfigPath("$HOME/.loom")
	}

	viper.SetEnvPrefix("LOOM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the process logger. With log.file set, output goes
// to a size-rotated file; otherwise to stderr.
func newLogger() *log.Logger {
	var w io.Writer = os.Stderr
	if file := viper.GetString("log.file"); file != "" {
		w = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
			Compress:   true,
		}
	}
	return log.New(w, "[loom] ", log.LstdFlags)
}

// recoveryMode maps the metadata.recovery config value to a RecoveryMode.
func recoveryMode() location.RecoveryMode {
	if viper.GetString("metadata.recovery") == "self-heal" {
		return location.RecoverySelfHeal
	}
	return location.RecoveryStrict
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
