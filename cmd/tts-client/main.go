// Command tts-client converts text to speech locally, without the NATS
// worker, using the same conversion engine as the service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/audio"
	"github.com/book-expert/tts-engine/internal/config"
	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/engine"
	"github.com/book-expert/tts-engine/internal/manager"
	edgeprovider "github.com/book-expert/tts-engine/internal/provider/edge"
	espeakprovider "github.com/book-expert/tts-engine/internal/provider/espeak"
	"github.com/book-expert/tts-engine/internal/resource"
	"github.com/book-expert/tts-engine/internal/textproc"
	"github.com/book-expert/tts-engine/internal/voice"
)

// Flag descriptions.
const (
	flagTextDesc       = "Text to convert to speech"
	flagFileDesc       = "Read the text to convert from a file"
	flagOutputDesc     = "Output file path (.mp3 or .wav)"
	flagVoiceDesc      = "Voice name or id (fuzzy matching supported)"
	flagProviderDesc   = "Preferred provider (edge, espeak)"
	flagRateDesc       = "Speaking rate delta in percent (-50..100)"
	flagPitchDesc      = "Pitch delta in percent (-50..100)"
	flagVolumeDesc     = "Volume delta in percent (-50..100)"
	flagListVoicesDesc = "List available voices and exit"
	flagLocaleDesc     = "Restrict --list-voices to a language tag prefix"
)

// Defaults.
const (
	defaultOutputFile = "output.mp3"
	logFileName       = "tts-client.log"
)

var (
	errNoInput          = errors.New("either --text or --file must be provided")
	errBothInput        = errors.New("cannot specify both --text and --file")
	errConversionFailed = errors.New("conversion failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text       string
	file       string
	output     string
	voiceName  string
	provider   string
	rate       float64
	pitch      float64
	volume     float64
	listVoices bool
	locale     string
}

func parseFlags() *appFlags {
	flags := &appFlags{}

	flag.StringVar(&flags.text, "text", "", flagTextDesc)
	flag.StringVar(&flags.file, "file", "", flagFileDesc)
	flag.StringVar(&flags.output, "out", defaultOutputFile, flagOutputDesc)
	flag.StringVar(&flags.voiceName, "voice", "", flagVoiceDesc)
	flag.StringVar(&flags.provider, "provider", "", flagProviderDesc)
	flag.Float64Var(&flags.rate, "rate", 0, flagRateDesc)
	flag.Float64Var(&flags.pitch, "pitch", 0, flagPitchDesc)
	flag.Float64Var(&flags.volume, "volume", 0, flagVolumeDesc)
	flag.BoolVar(&flags.listVoices, "list-voices", false, flagListVoicesDesc)
	flag.StringVar(&flags.locale, "locale", "", flagLocaleDesc)
	flag.Parse()

	return flags
}

// resolveInputText enforces that exactly one text source was given and
// returns its content.
func resolveInputText(flags *appFlags) (string, error) {
	switch {
	case flags.text != "" && flags.file != "":
		return "", errBothInput
	case flags.text != "":
		return flags.text, nil
	case flags.file != "":
		data, err := os.ReadFile(flags.file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file '%s': %w", flags.file, err)
		}

		return string(data), nil
	default:
		return "", errNoInput
	}
}

func buildEngine(
	ctx context.Context,
	cfg config.EngineConfig,
	log *logger.Logger,
) (*engine.Engine, *manager.Manager) {
	mgr := manager.New(
		log,
		manager.NewFallbackStrategy(),
		manager.NewHealthChecker(
			cfg.HealthThreshold,
			time.Duration(cfg.HealthCooldownSeconds)*time.Second,
		),
		manager.NewBreakerRegistry(
			log,
			cfg.BreakerThreshold,
			time.Duration(cfg.BreakerCooldownSeconds)*time.Second,
		),
	)

	mgr.Register(edgeprovider.New(ctx, log))
	mgr.Register(espeakprovider.New(log))

	eng := engine.New(
		cfg,
		textproc.NewPipeline(log),
		voice.NewResolver(mgr, cfg.Voice, log),
		mgr,
		audio.NewMerger(log),
		resource.NewManager(log),
		log,
	)

	return eng, mgr
}

func listVoices(ctx context.Context, mgr *manager.Manager, locale string) error {
	voices, err := mgr.Voices(ctx, locale)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	for _, item := range voices {
		fmt.Printf("%-28s %-8s %-8s %-8s %s\n",
			item.ID, item.Language, item.Gender, item.Provider, item.Name)
	}

	return nil
}

func run() error {
	flags := parseFlags()

	log, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		_ = log.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.EngineConfig

	cfg.ApplyDefaults()

	if flags.voiceName != "" {
		cfg.Voice = flags.voiceName
	}

	eng, mgr := buildEngine(ctx, cfg, log)

	if flags.listVoices {
		return listVoices(ctx, mgr, flags.locale)
	}

	text, err := resolveInputText(flags)
	if err != nil {
		return err
	}

	result := eng.Convert(ctx, &core.ConversionRequest{
		Text:       text,
		OutputPath: flags.output,
		Voice:      flags.voiceName,
		Provider:   flags.provider,
		Rate:       flags.rate,
		Pitch:      flags.pitch,
		Volume:     flags.volume,
	})
	if !result.Success {
		return fmt.Errorf("%w: %s", errConversionFailed, result.ErrorMessage)
	}

	fmt.Printf("Generated: %s (%v bytes, provider %v)\n",
		result.OutputPath, result.Metadata["file_size"], result.Metadata["provider"])

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
