package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atdiar/viewregistry/internal/watch"
)

var (
	version = "dev"
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zvr",
	Short: "zvr replays view registry scenarios",
	Long: `zvr loads a scenario (an HTML document, the view registries bound to it
and a list of steps), replays it on a fresh runtime and prints every message
published on the event channel.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./zvr.yaml or ~/.config/zvr/zvr.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("complex_compression", false)
	viper.SetDefault("trace.prefix", "")
	viper.SetDefault("watch.debounce", watch.DefaultDebounce)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. ./zvr.yaml
		// 2. ~/.config/zvr/zvr.yaml
		viper.SetConfigName("zvr")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "zvr"))
		}
	}
	viper.SetEnvPrefix("zvr")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "zvr: reading config:", err)
		}
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
