package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# synthesis engine: remote, local or mock
engine: "remote"
# playback rate (0.5 to 3.0)
rate: 1.0
# paragraphs to render ahead of the current one
lookahead: 2
# reject paragraphs longer than this many characters
max_paragraph_chars: 4096
# output sample rate
sample_rate: 44100
# where rendered audio is cached (default: auto)
# cache_dir: "~/.cache/lectern/audio"

# remote engine configuration
remote:
  # api_key: "your-api-key-here"
  model: "tts-1"
  voice: "onyx"
  timeout: "30s"

# local engine configuration
local:
  binary: "piper"
  model: "en_US-lessac-medium"
  # data_dir: "/usr/share/piper"
  speaker_id: 0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the lectern config file",
	Long:    "Edit the lectern config file. We'll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.",
	Example: "lectern config\nlectern config --config path/to/config.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Lectern", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
