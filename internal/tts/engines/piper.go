package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
)

// Audio format produced by piper with --output_raw.
const (
	// PiperSampleRate is the sample rate of raw piper output.
	PiperSampleRate = 22050
	// PiperChannels is the channel count of raw piper output.
	PiperChannels = 1
	// PiperBitsPerSample is the sample width of raw piper output.
	PiperBitsPerSample = 16

	// DefaultSpeed is the normal speaking speed.
	DefaultSpeed = 1.0
	// MinSpeed is the slowest supported speed.
	MinSpeed = 0.5
	// MaxSpeed is the fastest supported speed.
	MaxSpeed = 2.0

	// DefaultTimeout bounds a single synthesis run.
	DefaultTimeout = 30 * time.Second

	maxTextSize = 5000
)

// ErrEmptyText is returned when asked to synthesize nothing.
var ErrEmptyText = errors.New("text cannot be empty")

// PiperError represents Piper-specific errors.
type PiperError struct {
	Type    string
	Message string
	Cause   error
}

func (e *PiperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("piper %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("piper %s: %s", e.Type, e.Message)
}

func (e *PiperError) Unwrap() error {
	return e.Cause
}

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable. Empty searches PATH and common
	// install locations.
	Binary string

	// ModelPath is the ONNX voice model (required).
	ModelPath string

	// ConfigPath is the model config. Empty looks for <model>.json next to
	// the model.
	ConfigPath string

	// Speed is the speaking speed multiplier, 0.5 to 2.0.
	Speed float64

	// Timeout bounds one synthesis run.
	Timeout time.Duration
}

// PiperEngine synthesizes speech by running the piper binary once per
// utterance, with the text on stdin and raw PCM on stdout.
type PiperEngine struct {
	binaryPath string
	modelPath  string
	configPath string
	voice      string
	speed      float64
	timeout    time.Duration
}

// NewPiperEngine validates config and locates the piper binary.
func NewPiperEngine(config PiperConfig) (*PiperEngine, error) {
	if config.ModelPath == "" {
		return nil, &PiperError{Type: "model", Message: "model path is required"}
	}
	modelPath, err := homedir.Expand(config.ModelPath)
	if err != nil {
		return nil, &PiperError{Type: "model", Message: "invalid model path", Cause: err}
	}
	if !strings.HasSuffix(modelPath, ".onnx") {
		return nil, &PiperError{Type: "model", Message: "model file must be an ONNX file (.onnx extension)"}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &PiperError{Type: "model", Message: fmt.Sprintf("model file not found: %s", modelPath), Cause: err}
	}

	speed := config.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return nil, &PiperError{
			Type:    "parameter",
			Message: fmt.Sprintf("speed must be between %.1f and %.1f", MinSpeed, MaxSpeed),
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	binary, err := findBinary(config.Binary)
	if err != nil {
		return nil, err
	}

	e := &PiperEngine{
		binaryPath: binary,
		modelPath:  modelPath,
		configPath: findModelConfig(modelPath, config.ConfigPath),
		voice:      filepath.Base(strings.TrimSuffix(modelPath, ".onnx")),
		speed:      speed,
		timeout:    timeout,
	}
	log.Debug("Piper engine ready", "binary", e.binaryPath, "model", e.modelPath, "config", e.configPath, "speed", e.speed)
	return e, nil
}

// findBinary resolves the piper executable.
func findBinary(configured string) (string, error) {
	if configured != "" {
		p, err := homedir.Expand(configured)
		if err != nil {
			return "", &PiperError{Type: "dependency", Message: "invalid binary path", Cause: err}
		}
		if strings.ContainsRune(p, filepath.Separator) {
			if _, err := os.Stat(p); err != nil {
				return "", &PiperError{Type: "dependency", Message: fmt.Sprintf("piper binary not found at %s", p), Cause: err}
			}
			return p, nil
		}
		if path, err := exec.LookPath(p); err == nil {
			return path, nil
		}
	}

	path, err := exec.LookPath("piper")
	if err == nil {
		return path, nil
	}

	home, _ := homedir.Dir()
	commonPaths := []string{
		"/usr/local/bin/piper",
		"/usr/bin/piper",
		"/opt/piper/piper",
		filepath.Join(home, ".local/bin/piper"),
		filepath.Join(home, "bin/piper"),
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", &PiperError{
		Type:    "dependency",
		Message: "piper binary not found. Please install piper TTS: https://github.com/rhasspy/piper",
		Cause:   err,
	}
}

// findModelConfig returns the configured config path, or the first of
// <model>.onnx.json and <model>.json that exists.
func findModelConfig(modelPath, configured string) string {
	if configured != "" {
		if p, err := homedir.Expand(configured); err == nil {
			return p
		}
		return configured
	}
	for _, p := range []string{
		modelPath + ".json",
		strings.TrimSuffix(modelPath, ".onnx") + ".json",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Voice returns the model name.
func (e *PiperEngine) Voice() string {
	return e.voice
}

// Args returns the command line passed to piper.
func (e *PiperEngine) Args() []string {
	args := []string{"--model", e.modelPath, "--output_raw"}
	if e.configPath != "" {
		args = append(args, "--config", e.configPath)
	}
	// length_scale is the inverse of speed: 2.0 speed = 0.5 scale.
	if e.speed != DefaultSpeed {
		args = append(args, "--length_scale", fmt.Sprintf("%.2f", 1.0/e.speed))
	}
	return args
}

// Synthesize converts text to raw 16-bit mono PCM at PiperSampleRate.
func (e *PiperEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextSize {
		return nil, &PiperError{
			Type:    "parameter",
			Message: fmt.Sprintf("text too long: %d characters (max %d)", len(text), maxTextSize),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.binaryPath, e.Args()...)
	// stdin is wired before Start so the text is never raced.
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &PiperError{
				Type:    "timeout",
				Message: fmt.Sprintf("synthesis timed out after %v", e.timeout),
				Cause:   err,
			}
		}
		if ctx.Err() != nil {
			return nil, &PiperError{Type: "canceled", Message: "synthesis canceled", Cause: ctx.Err()}
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, &PiperError{Type: "synthesis", Message: fmt.Sprintf("piper error: %s", msg), Cause: err}
		}
		return nil, &PiperError{Type: "synthesis", Message: "synthesis failed", Cause: err}
	}

	audio := stdout.Bytes()
	if len(audio) == 0 {
		return nil, &PiperError{Type: "synthesis", Message: "no audio data generated"}
	}
	// 16-bit samples come in pairs of bytes.
	if len(audio)%2 != 0 {
		audio = append(audio, 0)
	}

	log.Debug("Synthesized utterance",
		"voice", e.voice,
		"chars", len(text),
		"audio", humanize.Bytes(uint64(len(audio))),
		"took", time.Since(start).Round(time.Millisecond))
	return audio, nil
}
