package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-annotate/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-annotate configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/` + config.FileName + `.yaml.
Service credentials are never stored; set GENEBE_USERNAME and GENEBE_API_KEY
in the environment instead.`,
		Example: `  vibe-annotate config                              # show effective config
  vibe-annotate config set genome hg38              # annotate against hg38
  vibe-annotate config set annotations.oncokb ~/cancerGeneList.tsv
  vibe-annotate config get cache.path               # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if viper.ConfigFileUsed() == "" {
		fmt.Fprintf(w, "# No config file; showing defaults. Config file: ~/%s.yaml\n", config.FileName)
	}
	_, err = w.Write(out)
	return err
}

func runConfigSet(w io.Writer, key, value string) error {
	key = strings.ToLower(key)
	if isCredentialKey(key) {
		return &usageError{errors.New("credentials are read from GENEBE_USERNAME and GENEBE_API_KEY only")}
	}
	if !slices.Contains(viper.AllKeys(), key) {
		return &usageError{fmt.Errorf("unknown config key %q", key)}
	}

	cfgFile, err := configFilePath()
	if err != nil {
		return err
	}

	// Only the file's own settings are rewritten so defaults stay unpinned.
	file := viper.New()
	file.SetConfigFile(cfgFile)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	file.Set(key, parseValue(value))

	probe := viper.New()
	config.SetDefaults(probe)
	for _, k := range file.AllKeys() {
		probe.Set(k, file.Get(k))
	}
	var cfg config.Config
	if err := probe.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}

// parseValue converts boolean-like and numeric strings.
func parseValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func isCredentialKey(key string) bool {
	for _, s := range []string{"username", "api_key", "apikey", "password", "token", "credential"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
