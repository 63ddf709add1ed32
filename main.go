// Package main provides the entry point for the chattts CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/app"
	"github.com/dgnsrekt/chattts/internal/audio"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/dedup"
	"github.com/dgnsrekt/chattts/internal/filter"
	"github.com/dgnsrekt/chattts/internal/hotkey"
	"github.com/dgnsrekt/chattts/internal/intake"
	"github.com/dgnsrekt/chattts/internal/lifecycle"
	"github.com/dgnsrekt/chattts/internal/source"
	"github.com/dgnsrekt/chattts/internal/speaker"
	"github.com/dgnsrekt/chattts/internal/tts/engines"
	"github.com/dgnsrekt/chattts/ui"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	noPrefix   bool
	muted      bool
	tuiFlag    bool
	noTUI      bool

	cfg    Config
	envCfg ui.Config

	rootCmd = &cobra.Command{
		Use:   "chattts [URL]",
		Short: "Read live chat aloud",
		Long: paragraph(
			fmt.Sprintf("\nRead a live chat %s, one message at a time.", keyword("out loud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}
	if cmd.Flags().Changed("no-prefix") {
		viper.Set("prefix_required", !noPrefix)
	}
	if cmd.Flags().Changed("mute") {
		viper.Set("speech_enabled", !muted)
	}
	switch {
	case cmd.Flags().Changed("no-tui") && noTUI:
		viper.Set("tui", "false")
	case cmd.Flags().Changed("tui"):
		viper.Set("tui", strconv.FormatBool(tuiFlag))
	}

	cfg = defaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unable to read configuration: %w", err)
	}

	var err error
	for _, p := range []*string{&cfg.FilterFile, &cfg.SeenFile, &cfg.Piper.Model, &cfg.Piper.Binary, &cfg.Browser.Bin} {
		if *p, err = homedir.Expand(*p); err != nil {
			return fmt.Errorf("invalid path %q: %w", *p, err)
		}
	}

	switch {
	case cfg.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", cfg.PollInterval)
	case cfg.UtteranceGap < 0:
		return fmt.Errorf("utterance_gap must not be negative, got %s", cfg.UtteranceGap)
	case cfg.SkipPoll <= 0:
		return fmt.Errorf("skip_poll must be positive, got %s", cfg.SkipPoll)
	case cfg.HeartbeatEvery < 0:
		return fmt.Errorf("heartbeat_every must not be negative, got %d", cfg.HeartbeatEvery)
	case cfg.Piper.Speed < engines.MinSpeed || cfg.Piper.Speed > engines.MaxSpeed:
		return fmt.Errorf("piper speed must be between %.1f and %.1f, got %.2f", engines.MinSpeed, engines.MaxSpeed, cfg.Piper.Speed)
	}
	if _, err := strconv.ParseBool(cfg.TUI); err != nil && cfg.TUI != "auto" {
		return fmt.Errorf("tui must be auto, true or false, got %q", cfg.TUI)
	}
	return nil
}

// useTUI reports whether the status line should own the terminal.
func useTUI() bool {
	if on, err := strconv.ParseBool(cfg.TUI); err == nil {
		return on
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func execute(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	if cfg.URL == "" {
		return errors.New("missing chat URL: pass it as an argument or set url in the config file")
	}
	if cfg.Piper.Model == "" {
		return errors.New("missing voice model: set piper.model in the config file or pass --model")
	}

	log.SetDefault(log.Default().With("session", uuid.NewString()[:8]))

	// Nothing is launched for a page we cannot read.
	if err := source.Supported(cfg.URL); err != nil {
		log.Error("Unsupported platform", "url", cfg.URL)
		return err //nolint:wrapcheck
	}

	tui := useTUI()
	if !tui || envCfg.LogStderr {
		mirrorLogToStderr()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, tui)
}

func run(ctx context.Context, tui bool) error {
	terms, err := filter.LoadTerms(cfg.FilterFile)
	if err != nil {
		return err //nolint:wrapcheck
	}
	words := filter.New(terms)
	log.Info("Loaded banned words", "count", words.Len(), "path", cfg.FilterFile)

	engine, err := engines.NewPiperEngine(engines.PiperConfig{
		Binary:    cfg.Piper.Binary,
		ModelPath: cfg.Piper.Model,
		Speed:     cfg.Piper.Speed,
		Timeout:   cfg.Piper.Timeout,
	})
	if err != nil {
		return fmt.Errorf("unable to start speech engine: %w", err)
	}

	lm := lifecycle.NewManager(lifecycle.DefaultTimeout)
	defer func() {
		if err := lm.Shutdown(); err != nil {
			log.Warn("Shutdown finished with errors", "err", err)
		}
	}()

	browserCfg := source.DefaultBrowserConfig()
	browserCfg.Bin = cfg.Browser.Bin
	browserCfg.ControlURL = cfg.Browser.ControlURL
	browserCfg.Headless = cfg.Browser.Headless
	browserCfg.WaitTimeout = cfg.FetchTimeout
	src, err := source.NewRodSource(ctx, cfg.URL, browserCfg)
	if err != nil {
		return fmt.Errorf("unable to open chat page: %w", err)
	}
	lm.Register(src)

	player, err := audio.NewPlayer(audio.PlayerConfig{
		SampleRate: engines.PiperSampleRate,
		Channels:   engines.PiperChannels,
		BitDepth:   engines.PiperBitsPerSample,
		BufferSize: audio.DefaultPlayerConfig().BufferSize,
	})
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	lm.Register(player)

	store := dedup.Load(cfg.SeenFile)
	lm.Register(lifecycle.Func{
		Label: "session state",
		Stop:  func(context.Context) error { return store.Clear() },
	})

	ctrl := control.New(cfg.Prefix, cfg.SpeechEnabled, cfg.PrefixRequired)
	sp := speaker.New(engine, player, ctrl)
	sp.Gap = cfg.UtteranceGap
	sp.PollInterval = cfg.SkipPoll

	application := &app.App{
		Cycle: &intake.Cycle{
			Source:  src,
			Seen:    store,
			Filter:  words,
			Control: ctrl,
		},
		Speaker:        sp,
		Session:        store,
		PollInterval:   cfg.PollInterval,
		HeartbeatEvery: cfg.HeartbeatEvery,
		FetchTimeout:   cfg.FetchTimeout,
	}

	s := ctrl.Snapshot()
	log.Info("Reading chat",
		"url", cfg.URL,
		"voice", engine.Voice(),
		"speech", s.SpeechEnabled,
		"prefix", s.ActivePrefix)

	if !tui {
		log.Warn("No terminal attached, hotkeys are disabled")
		return application.Run(ctx) //nolint:wrapcheck
	}

	disp := hotkey.NewDispatcher(ctrl, cfg.Keys, hotkey.DefaultDebounce)
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	p := ui.NewProgram(runCtx, envCfg, ctrl, disp, cfg.Keys)
	n := ui.NewNotifier(p)
	sp.Hooks = n.Hooks()
	application.OnHeartbeat = n.Heartbeat

	g.Go(func() error {
		defer cancel()
		return application.Run(runCtx) //nolint:wrapcheck
	})
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("unable to run status line: %w", err)
		}
		return nil
	})
	return g.Wait() //nolint:wrapcheck
}

func main() {
	var err error
	envCfg, err = env.ParseAs[ui.Config]()
	if err != nil {
		fmt.Println("error parsing environment:", err)
		os.Exit(1)
	}
	closer, err := setupLog(envCfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	def := defaultConfig()
	flags := rootCmd.Flags()
	if used := viper.ConfigFileUsed(); used != "" {
		configFile = used
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	flags.String("prefix", def.Prefix, "command prefix a message must start with")
	flags.BoolVar(&noPrefix, "no-prefix", false, "read every message, not only prefixed ones")
	flags.BoolVar(&muted, "mute", false, "start with speech off")
	flags.DurationP("interval", "i", def.PollInterval, "wait between two reads of the chat page")
	flags.Duration("gap", def.UtteranceGap, "pause between two messages")
	flags.StringP("model", "m", "", "piper voice model (.onnx)")
	flags.String("piper", def.Piper.Binary, "piper executable")
	flags.Float64P("speed", "s", def.Piper.Speed, "speaking speed (0.5-2.0)")
	flags.String("browser", "", "browser executable (default: download or find Chromium)")
	flags.String("browser-url", "", "attach to a running browser at this DevTools URL")
	flags.Bool("headless", def.Browser.Headless, "run the browser without a window")
	flags.BoolVarP(&tuiFlag, "tui", "t", false, "show the status line with hotkeys (default: when attached to a terminal)")
	flags.BoolVar(&noTUI, "no-tui", false, "never show the status line")
	rootCmd.MarkFlagsMutuallyExclusive("tui", "no-tui")

	// Config bindings
	_ = viper.BindPFlag("prefix", flags.Lookup("prefix"))
	_ = viper.BindPFlag("poll_interval", flags.Lookup("interval"))
	_ = viper.BindPFlag("utterance_gap", flags.Lookup("gap"))
	_ = viper.BindPFlag("piper.model", flags.Lookup("model"))
	_ = viper.BindPFlag("piper.binary", flags.Lookup("piper"))
	_ = viper.BindPFlag("piper.speed", flags.Lookup("speed"))
	_ = viper.BindPFlag("browser.bin", flags.Lookup("browser"))
	_ = viper.BindPFlag("browser.control_url", flags.Lookup("browser-url"))
	_ = viper.BindPFlag("browser.headless", flags.Lookup("headless"))

	setDefaults(viper.GetViper(), def)

	rootCmd.AddCommand(configCmd, filterCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("CHATTTS_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
