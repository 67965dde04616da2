package reporter

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"
)

// DateLayout renders the banner date as day:month:year - hour:minute:second.
const DateLayout = "02:01:2006 - 15:04:05"

// EmptyResult replaces the body when decoding produced no text.
const EmptyResult = "# No result generated"

//go:embed templates/header.tmpl
var headerSource string

var headerTemplate = template.Must(template.New("header").Parse(headerSource))

type headerData struct {
	Layers int
	Date   string
}

// Banner renders the comment block prepended to decoded output.
func Banner(layers int, at time.Time) (string, error) {
	var buf bytes.Buffer
	if err := headerTemplate.Execute(&buf, headerData{Layers: layers, Date: at.Format(DateLayout)}); err != nil {
		return "", fmt.Errorf("render header: %w", err)
	}
	return buf.String(), nil
}

// ComposeOptions controls how decoded text is framed.
type ComposeOptions struct {
	Header bool
	Layers int
	At     time.Time
}

// Compose frames text for writing. With a header, the banner is followed by
// a blank line and the text, or EmptyResult when text is empty.
func Compose(text string, opts ComposeOptions) (string, error) {
	if !opts.Header {
		return text, nil
	}
	banner, err := Banner(opts.Layers, opts.At)
	if err != nil {
		return "", err
	}
	if text == "" {
		text = EmptyResult
	}
	return banner + "\n" + text, nil
}

// WriteOutput stores content at path, creating parent directories.
func WriteOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
