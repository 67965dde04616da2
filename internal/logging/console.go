package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[91m"
	colorGreen   = "\033[92m"
	colorYellow  = "\033[93m"
	colorBlue    = "\033[94m"
	colorMagenta = "\033[95m"
	colorCyan    = "\033[96m"
)

// ConsoleOptions configures the human-facing logger.
type ConsoleOptions struct {
	Out     io.Writer
	Level   string
	NoColor bool
}

// NewConsole returns a zerolog logger that prints tagged lines such as
// "[i] Reading file: obf.py". Events logged without a level (Success) are
// tagged "[+]". Colors are dropped when Out is not a terminal.
func NewConsole(opts ConsoleOptions) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	noColor := !UseColor(opts)

	writer := zerolog.ConsoleWriter{
		Out:         out,
		NoColor:     noColor,
		PartsOrder:  []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatLevel: formatTag(noColor),
		FormatFieldName: func(i any) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i any) string {
			return fmt.Sprintf("%v", i)
		},
	}
	return zerolog.New(writer).Level(level), nil
}

// Success starts a "[+]" event. It is suppressed when the logger is quieter
// than info.
func Success(logger *zerolog.Logger) *zerolog.Event {
	if logger.GetLevel() > zerolog.InfoLevel {
		return nil
	}
	return logger.Log()
}

// ParseLevel maps a configured level name to a zerolog level. The empty
// string selects info.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

func formatTag(noColor bool) zerolog.Formatter {
	return func(i any) string {
		level, _ := i.(string)
		tag, color := "[+]", colorGreen
		switch level {
		case "trace", "debug":
			tag, color = "[*]", colorBlue
		case "info":
			tag, color = "[i]", colorCyan
		case "warn":
			tag, color = "[!]", colorYellow
		case "error", "fatal", "panic":
			tag, color = "[-]", colorRed
		}
		if noColor {
			return tag
		}
		return color + tag + colorReset
	}
}

// Highlight wraps s in the banner color unless colors are disabled.
func Highlight(s string, noColor bool) string {
	if noColor {
		return s
	}
	return colorMagenta + s + colorReset
}

// UseColor reports whether console output for opts is colored.
func UseColor(opts ConsoleOptions) bool {
	if opts.NoColor {
		return false
	}
	if opts.Out == nil {
		return isTerminal(os.Stdout)
	}
	return isTerminal(opts.Out)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
