package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/chattts/internal/filter"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the chattts config file",
	Long:    paragraph(fmt.Sprintf("\n%s the chattts config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("chattts config\nchattts config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}
		if err := edit(configFile); err != nil {
			return err
		}
		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var filterCmd = &cobra.Command{
	Use:     "filter",
	Short:   "Edit the banned word list",
	Long:    paragraph(fmt.Sprintf("\n%s the list of words that keep a message from being read aloud. Matching ignores case, accents and separators like dots or dashes between letters.", keyword("Edit"))),
	Example: paragraph("chattts filter"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		p, err := homedir.Expand(viper.GetString("filter_file"))
		if err != nil {
			return fmt.Errorf("invalid filter file: %w", err)
		}
		if _, err := filter.EnsureFile(p); err != nil {
			return err //nolint:wrapcheck
		}
		if err := edit(p); err != nil {
			return err
		}

		// Re-read the file so syntax errors show up now rather than at
		// the next start.
		terms, err := filter.LoadTerms(p)
		if err != nil {
			return fmt.Errorf("filter file is invalid: %w", err)
		}
		fmt.Printf("Wrote %d banned words to: %s\n", len(terms), p)
		return nil
	},
}

func edit(file string) error {
	c, err := editor.Cmd("chattts", file)
	if err != nil {
		return fmt.Errorf("unable to set config file: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("unable to run command: %w", err)
	}
	return nil
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

		data, err := defaultConfigYAML(defaultConfig())
		if err != nil {
			return err
		}
		if err := os.WriteFile(configFile, data, 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
