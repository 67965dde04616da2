package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/mardec/internal/config"
)

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "config subcommand required")
		return 2
	}

	switch args[0] {
	case "print":
		return runConfigPrint(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runConfigPrint(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("config print", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "configuration file to resolve instead of the default locations")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "config print takes no arguments")
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if err := printResolvedConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "print config: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printResolvedConfig(out io.Writer, cfg config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
