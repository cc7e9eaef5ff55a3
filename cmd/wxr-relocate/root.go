/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var (
	// Store the result of binding cobra flags
	Config string
	Debug  bool

	OldHost     string
	NewBase     string
	DownloadDir string

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "wxr-relocate",
	Short: "Migrate the media of a WordPress export to a new host",
	Long: `
Point this tool at a WordPress WXR export, the host your media currently lives
on, and the base URL it should live on instead.  It downloads every real media
asset (originals and their validated resized variants), preserving the upload
path layout, and rewrites the export so all references point at the new base.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// You can bind cobra and viper in a few locations, but PersistentPreRunE on the root command works well
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("wxr-relocate: failed to initialise config: %w", err)
		}
		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: ~/.config/wxr-relocate.yaml, respects WXR_RELOCATE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().StringVar(&OldHost, "old-host", "", "hostname your media currently lives on, e.g. blog.example.com")
	rootCmd.PersistentFlags().StringVar(&NewBase, "new-base", "", "absolute URL media should live under, e.g. https://cdn.example.com/blog")
	rootCmd.PersistentFlags().StringVar(&DownloadDir, "download-dir", "", "directory to mirror downloaded media into")
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := Config != ""
	if Config == "" {
		// Did the user provide an ENV?
		envConfig := os.Getenv("WXR_RELOCATE_CONFIG")
		if envConfig != "" {
			Config = envConfig
			explicit = true
		} else {
			// As fallback, search for config in home XDG-ish directory
			Config = "~/.config/wxr-relocate.yaml"
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("wxr-relocate: unable to expand homedir: %w", err)
	}
	Config = config

	if _, err := os.Stat(Config); errors.Is(err, os.ErrNotExist) {
		if !explicit {
			// no config file is fine, flags carry the day
			debugLog("no config file at %s, continuing with flags only\n", Config)
			return nil
		}
		fmt.Printf("Couldn't read config file %s, does it exist?  Override with --config.\n", Config)
		return fmt.Errorf("wxr-relocate: specified config file does not exist: %w", err)
	}

	yamlFile, err := os.ReadFile(Config)
	if err != nil {
		return fmt.Errorf("wxr-relocate: error reading config file: %w", err)
	}

	// I'd like to bark if a user sets a flag we don't recognise:
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("wxr-relocate: issue parsing config file: %w", err)
	}

	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("wxr-relocate: failed to bind flags: %w", err)
	}

	return nil
}

type YamlConfig struct {
	KeepAttachments *bool `yaml:"keep-attachments"`
	WithVCR         *bool `yaml:"with-vcr"`

	OldHost     string `yaml:"old-host"`
	NewBase     string `yaml:"new-base"`
	DownloadDir string `yaml:"download-dir"`
	Output      string `yaml:"output"`
	UserAgent   string `yaml:"user-agent"`
	MappingLog  string `yaml:"mapping-log"`
	ErrorLog    string `yaml:"error-log"`
	Report      string `yaml:"report"`

	Workers int `yaml:"workers"`
}

// Bind each config file entry to the cobra flag of the same name, unless the
// flag was given on the command line.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("wxr-relocate: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// hmm... the flag is unknown.  but that can legitimately happen if you're running
			// e.g. `scan` which has no `with-vcr` flag but your YAML file does define it...
			continue
		}
		if !cmd.Flags().Changed(key) {
			switch field.Kind() {
			case reflect.Ptr:
				// err, this is crappy, but i know YamlConfig only uses pointers for bools.....
				b, ok := field.Value().(*bool)
				if !ok {
					return fmt.Errorf("wxr-relocate: found unrecognised field: %+v", field)
				}
				if b != nil {
					cmd.Flags().Set(key, fmt.Sprintf("%v", *b))
				}

			case reflect.String:
				s, ok := field.Value().(string)
				if !ok {
					return fmt.Errorf("wxr-relocate: found unrecognised field: %+v", field)
				}
				if s != "" {
					cmd.Flags().Set(key, s)
				}

			case reflect.Int:
				n, ok := field.Value().(int)
				if !ok {
					return fmt.Errorf("wxr-relocate: found unrecognised field: %+v", field)
				}
				if n != 0 {
					cmd.Flags().Set(key, fmt.Sprintf("%d", n))
				}

			default:
				return fmt.Errorf("wxr-relocate: found unrecognised field: %+v", field)
			}
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Flags are only available after (or inside, presumably) the .Execute() thing.
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("wxr-relocate: execution error: %w", err)
	}

	return nil
}
