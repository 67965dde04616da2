package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/RowanDark/mardec/internal/cipher"
	"github.com/RowanDark/mardec/internal/config"
	"github.com/RowanDark/mardec/internal/engine"
	"github.com/RowanDark/mardec/internal/input"
	"github.com/RowanDark/mardec/internal/logging"
	"github.com/RowanDark/mardec/internal/reporter"
)

// now stamps the output banner and reports.
var now = time.Now

type decodeFlags struct {
	output        string
	configPath    string
	codecOrder    string
	reportPath    string
	auditPath     string
	disable       []string
	maxLayers     int
	maxIterations int
	noHeader      bool
	quiet         bool
	extended      bool
	noColor       bool
	showVersion   bool
	checkUpdate   bool
	noUpdate      bool
}

func newDecodeFlagSet(stderr io.Writer, f *decodeFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(productName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.output, "output", "o", "", "write the decoded source to this path")
	fs.StringVar(&f.configPath, "config", "", "configuration file to use instead of the default locations")
	fs.StringVar(&f.codecOrder, "codec-order", "", "codec priority: compression-first or encoding-first")
	fs.StringVar(&f.reportPath, "report", "", "write a JSON summary of the run to this path")
	fs.StringVar(&f.auditPath, "audit", "", "append JSONL audit events to this path")
	fs.StringSliceVar(&f.disable, "disable", nil, "codecs to leave out, comma separated")
	fs.IntVar(&f.maxLayers, "max-layers", 0, "layers decoded per pass before giving up")
	fs.IntVar(&f.maxIterations, "max-iterations", 0, "passes run before giving up")
	fs.BoolVar(&f.noHeader, "no-header", false, "write the decoded source without the banner")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	fs.BoolVar(&f.extended, "extended", false, "also try zstd and lz4 frames")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&f.showVersion, "version", false, "print the mardec version and exit")
	fs.BoolVar(&f.checkUpdate, "check-update", false, "check for a newer release before decoding")
	fs.BoolVarP(&f.noUpdate, "no-update", "n", false, "accepted for compatibility; updates are never checked unless asked")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <input_file> [output_file]\n", productName)
		fmt.Fprintf(stderr, "       %s version | config print | self-update [--channel] [--rollback]\n\n", productName)
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}
	return fs
}

// apply layers explicit flags over the resolved configuration.
func (f *decodeFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("output") {
		cfg.Output = f.output
	}
	if fs.Changed("codec-order") {
		cfg.CodecOrder = f.codecOrder
	}
	if fs.Changed("disable") {
		cfg.DisabledCodecs = append(cfg.DisabledCodecs, f.disable...)
	}
	if fs.Changed("extended") {
		cfg.ExtendedCodecs = f.extended
	}
	if fs.Changed("max-layers") {
		cfg.MaxLayers = f.maxLayers
	}
	if fs.Changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
	if f.noHeader {
		cfg.Header = false
	}
	if f.noColor {
		cfg.Log.NoColor = true
	}
	if f.quiet {
		cfg.Log.Level = "error"
	}
	if fs.Changed("audit") {
		cfg.Log.AuditPath = f.auditPath
	}
}

func runDecode(args []string, stdout, stderr io.Writer) int {
	var flags decodeFlags
	fs := newDecodeFlagSet(stderr, &flags)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.showVersion {
		fmt.Fprintln(stdout, versionString())
		return 0
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	flags.apply(fs, &cfg)
	if fs.NArg() > 1 {
		cfg.Output = fs.Arg(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	consoleOpts := logging.ConsoleOptions{Out: stdout, Level: cfg.Log.Level, NoColor: cfg.Log.NoColor}
	logger, err := logging.NewConsole(consoleOpts)
	if err != nil {
		fmt.Fprintf(stderr, "configure logging: %v\n", err)
		return 2
	}
	// Banners follow the console's color decision.
	cfg.Log.NoColor = !logging.UseColor(consoleOpts)
	logger.Info().Msg(logging.Highlight("Auto Deobfuscator "+versionString(), cfg.Log.NoColor))

	ctx := context.Background()
	if flags.checkUpdate {
		checkForUpdates(ctx, &logger, cfg)
		if fs.NArg() == 0 {
			return 0
		}
	}

	if fs.NArg() == 0 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}
	inputPath := fs.Arg(0)

	logger.Info().Msgf("Reading file: %s", inputPath)
	buf, err := input.Load(inputPath)
	if err != nil {
		if errors.Is(err, input.ErrNotFound) {
			logger.Error().Msgf("File not found: %s", inputPath)
		} else {
			logger.Error().Err(err).Msg("Failed to read input")
		}
		return 1
	}

	if err := decode(&logger, cfg, inputPath, buf, flags.reportPath); err != nil {
		logger.Error().Msg(err.Error())
		return 1
	}
	return 0
}

func decode(logger *zerolog.Logger, cfg config.Config, inputPath string, buf cipher.Buffer, reportPath string) error {
	codecOpts, err := cfg.CodecOptions()
	if err != nil {
		return err
	}

	observers := []engine.Observer{logging.NewProgress(logger)}
	runID := uuid.NewString()
	var auditObserver *logging.AuditObserver
	if cfg.Log.AuditPath != "" {
		audit, err := logging.NewAuditLogger("cli", logging.WithFile(cfg.Log.AuditPath), logging.WithRunID(runID))
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer audit.Close()
		auditObserver = logging.NewAuditObserver(audit)
		observers = append(observers, auditObserver)
	}

	driver, err := engine.NewSessionDriver(engine.Config{
		Decoder:  cipher.NewSet(codecOpts...),
		Limits:   cfg.Limits(),
		Observer: engine.Observers(observers...),
	})
	if err != nil {
		return err
	}
	session := driver.Run(buf)
	if auditObserver != nil {
		if err := auditObserver.Err(); err != nil {
			logger.Warn().Err(err).Msg("Audit trail incomplete")
		}
	}
	if !session.Clean {
		logger.Warn().Msgf("Output may still be obfuscated (last pass %s)", session.Terminal)
	}

	stamp := now()
	content, err := reporter.Compose(session.FinalText, reporter.ComposeOptions{
		Header: cfg.Header,
		Layers: session.TotalLayers,
		At:     stamp,
	})
	if err != nil {
		return err
	}

	logger.Info().Msgf("Saving deobfuscated code to: %s", cfg.Output)
	if err := reporter.WriteOutput(cfg.Output, content); err != nil {
		return err
	}

	if reportPath != "" {
		summary := reporter.BuildSummary(session, reporter.SummaryOptions{
			RunID:       runID,
			Input:       inputPath,
			Output:      cfg.Output,
			OutputSize:  len(content),
			GeneratedAt: stamp,
		})
		if err := reporter.WriteSummary(reportPath, summary); err != nil {
			return err
		}
		logger.Info().Msgf("Summary written to: %s", reportPath)
	}

	printSummary(logger, session, cfg, len(content))
	return nil
}

func printSummary(logger *zerolog.Logger, session *engine.Session, cfg config.Config, size int) {
	rule := logging.Highlight(strings.Repeat("=", 60), cfg.Log.NoColor)
	logging.Success(logger).Msg(rule)
	logging.Success(logger).Msg("Deobfuscation complete!")
	logging.Success(logger).Msgf("Total iterations: %d", session.Iterations)
	logging.Success(logger).Msgf("Total layers decoded: %d", session.TotalLayers)
	logging.Success(logger).Msgf("Output file: %s", cfg.Output)
	logging.Success(logger).Msgf("Output size: %d bytes", size)
	logging.Success(logger).Msg(rule)
}
