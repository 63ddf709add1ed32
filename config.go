package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/chattts/internal/app"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/hotkey"
	"github.com/dgnsrekt/chattts/internal/speaker"
	"github.com/dgnsrekt/chattts/internal/tts/engines"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "chattts"
	filterFileName = "filter.json"
	seenFileName   = "spoken_messages.json"
)

// envKeyReplacer maps nested keys to environment names, so piper.model is
// read from CHATTTS_PIPER_MODEL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config is the full set of options read from the config file, the
// environment and flags.
type Config struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Prefix         string        `mapstructure:"prefix" yaml:"prefix"`
	PrefixRequired bool          `mapstructure:"prefix_required" yaml:"prefix_required"`
	SpeechEnabled  bool          `mapstructure:"speech_enabled" yaml:"speech_enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	UtteranceGap   time.Duration `mapstructure:"utterance_gap" yaml:"utterance_gap"`
	SkipPoll       time.Duration `mapstructure:"skip_poll" yaml:"skip_poll"`
	HeartbeatEvery int           `mapstructure:"heartbeat_every" yaml:"heartbeat_every"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	FilterFile     string        `mapstructure:"filter_file" yaml:"filter_file"`
	SeenFile       string        `mapstructure:"seen_file" yaml:"seen_file"`
	TUI            string        `mapstructure:"tui" yaml:"tui"`

	Piper   PiperOptions    `mapstructure:"piper" yaml:"piper"`
	Browser BrowserOptions  `mapstructure:"browser" yaml:"browser"`
	Keys    hotkey.Bindings `mapstructure:"keys" yaml:"keys"`
}

// PiperOptions configures the speech engine.
type PiperOptions struct {
	Binary  string        `mapstructure:"binary" yaml:"binary"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Speed   float64       `mapstructure:"speed" yaml:"speed"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BrowserOptions configures the browser used to read the chat page.
type BrowserOptions struct {
	Bin        string `mapstructure:"bin" yaml:"bin"`
	ControlURL string `mapstructure:"control_url" yaml:"control_url"`
	Headless   bool   `mapstructure:"headless" yaml:"headless"`
}

func defaultConfig() Config {
	return Config{
		Prefix:         control.DefaultPrefix,
		PrefixRequired: true,
		SpeechEnabled:  true,
		PollInterval:   app.DefaultPollInterval,
		UtteranceGap:   speaker.DefaultGap,
		SkipPoll:       speaker.DefaultPollInterval,
		HeartbeatEvery: app.DefaultHeartbeatEvery,
		FetchTimeout:   app.DefaultFetchTimeout,
		FilterFile:     defaultPath(gap.NewScope(gap.User, appName).ConfigDirs, filterFileName),
		SeenFile:       defaultPath(gap.NewScope(gap.User, appName).DataDirs, seenFileName),
		TUI:            "auto",
		Piper: PiperOptions{
			Binary:  "piper",
			Speed:   engines.DefaultSpeed,
			Timeout: engines.DefaultTimeout,
		},
		Browser: BrowserOptions{Headless: true},
		Keys:    hotkey.DefaultBindings(),
	}
}

func defaultPath(dirs func() ([]string, error), name string) string {
	d, err := dirs()
	if err != nil || len(d) == 0 {
		return name
	}
	return filepath.Join(d[0], name)
}

// setDefaults registers every key of def with viper so that environment
// variables are picked up for all of them.
func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("url", def.URL)
	v.SetDefault("prefix", def.Prefix)
	v.SetDefault("prefix_required", def.PrefixRequired)
	v.SetDefault("speech_enabled", def.SpeechEnabled)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("utterance_gap", def.UtteranceGap)
	v.SetDefault("skip_poll", def.SkipPoll)
	v.SetDefault("heartbeat_every", def.HeartbeatEvery)
	v.SetDefault("fetch_timeout", def.FetchTimeout)
	v.SetDefault("filter_file", def.FilterFile)
	v.SetDefault("seen_file", def.SeenFile)
	v.SetDefault("tui", def.TUI)

	v.SetDefault("piper.binary", def.Piper.Binary)
	v.SetDefault("piper.model", def.Piper.Model)
	v.SetDefault("piper.speed", def.Piper.Speed)
	v.SetDefault("piper.timeout", def.Piper.Timeout)

	v.SetDefault("browser.bin", def.Browser.Bin)
	v.SetDefault("browser.control_url", def.Browser.ControlURL)
	v.SetDefault("browser.headless", def.Browser.Headless)

	v.SetDefault("keys.toggle_speech", def.Keys.ToggleSpeech)
	v.SetDefault("keys.skip", def.Keys.Skip)
	v.SetDefault("keys.toggle_prefix", def.Keys.TogglePrefix)
}

var configComments = map[string]string{
	"url":                 "chat page to read aloud (can also be passed as an argument)",
	"prefix":              "command prefix a message must start with to be read",
	"prefix_required":     "only read messages that start with the prefix",
	"speech_enabled":      "start with speech on",
	"poll_interval":       "wait between two reads of the chat page",
	"utterance_gap":       "pause between two messages",
	"skip_poll":           "how often playback is checked for a skip",
	"heartbeat_every":     "log a heartbeat every N polls (0 disables it)",
	"fetch_timeout":       "give up on a page read after this long",
	"filter_file":         "JSON file with the banned word list",
	"seen_file":           "where the messages read this session are remembered",
	"tui":                 "status line with hotkeys: auto, true or false",
	"piper":               "piper speech engine",
	"piper.model":         "path to the .onnx voice model (required)",
	"piper.speed":         "speaking speed from 0.5 to 2.0",
	"browser":             "browser used to read the chat page",
	"browser.control_url": "attach to a running browser instead of launching one",
	"keys":                "hotkeys, in the form ctrl+alt+t",
}

// defaultConfigYAML renders def as a commented YAML document.
func defaultConfigYAML(def Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(def); err != nil {
		return nil, fmt.Errorf("unable to encode default config: %w", err)
	}
	commentMapping(&doc, "")
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal default config: %w", err)
	}
	return out, nil
}

func commentMapping(n *yaml.Node, prefix string) {
	if n.Kind == yaml.DocumentNode {
		for _, c := range n.Content {
			commentMapping(c, prefix)
		}
		return
	}
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		path := k.Value
		if prefix != "" {
			path = prefix + "." + k.Value
		}
		if c, ok := configComments[path]; ok {
			k.HeadComment = c
		}
		commentMapping(v, path)
	}
}
