package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/RowanDark/mardec/internal/config"
	"github.com/RowanDark/mardec/internal/updater"
)

const (
	checkTimeout  = 5 * time.Second
	updateTimeout = 2 * time.Minute
)

func runSelfUpdate(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "channel" {
		return runSelfUpdateChannel(args[1:], stdout, stderr)
	}

	fs := pflag.NewFlagSet("self-update", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	channelFlag := fs.String("channel", "", "release channel for this run (stable or beta)")
	rollback := fs.Bool("rollback", false, "swap the executable with its .backup copy")
	configPath := fs.String("config", "", "configuration file to use")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "self-update takes no positional arguments")
		return 2
	}
	if *channelFlag != "" {
		if _, err := updater.NormalizeChannel(*channelFlag); err != nil {
			fmt.Fprintf(stderr, "invalid channel: %v\n", err)
			return 2
		}
	}

	client := &updater.Client{CurrentVersion: version, Out: stdout}
	if *rollback {
		if err := client.Rollback(context.Background()); err != nil {
			fmt.Fprintf(stderr, "rollback failed: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	channel, err := resolveChannel(*channelFlag, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	client.Feed = updater.Feed{
		HTTPClient: &http.Client{Timeout: updateTimeout},
		BaseURL:    cfg.Update.BaseURL,
		Channel:    channel,
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	fmt.Fprintln(stdout, "Checking for updates...")
	if _, err := client.Update(ctx); err != nil {
		fmt.Fprintf(stderr, "update failed: %v\n", err)
		return 1
	}
	return 0
}

func runSelfUpdateChannel(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("self-update channel", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "self-update channel accepts at most one argument")
		return 2
	}

	dir, err := updater.StateDir()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	if fs.NArg() == 0 {
		cfg, err := loadConfig("")
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
		channel, err := resolveChannel("", cfg)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, channel)
		return 0
	}

	channel, err := updater.NormalizeChannel(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "invalid channel: %v\n", err)
		return 2
	}
	if err := updater.SaveState(dir, updater.State{Channel: channel}); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "default channel set to %s\n", channel)
	return 0
}

// resolveChannel picks the release channel: an explicit flag, then the
// preference saved by "self-update channel", then the config file.
func resolveChannel(flag string, cfg config.Config) (string, error) {
	if flag != "" {
		return updater.NormalizeChannel(flag)
	}
	dir, err := updater.StateDir()
	if err != nil {
		return "", err
	}
	st, err := updater.LoadState(dir)
	if err != nil {
		return "", err
	}
	if st.Channel != "" {
		return st.Channel, nil
	}
	return updater.NormalizeChannel(cfg.Update.Channel)
}

// checkForUpdates reports whether a newer release exists. Failures are
// logged and never stop decoding.
func checkForUpdates(ctx context.Context, logger *zerolog.Logger, cfg config.Config) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	logger.Info().Msg("Checking for updates...")
	channel, err := resolveChannel("", cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping update check.")
		return
	}
	client := &updater.Client{
		Feed: updater.Feed{
			HTTPClient: &http.Client{Timeout: checkTimeout},
			BaseURL:    cfg.Update.BaseURL,
			Channel:    channel,
		},
		CurrentVersion: version,
	}
	status, err := client.Check(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("No internet connection or update server unavailable. Skipping update check.")
		return
	}
	if !status.Available {
		logger.Info().Msgf("Already on latest version (%s)", status.Current)
		return
	}
	logger.Warn().Msgf("Update available: %s (current: %s). Run \"mardec self-update\" to install it.", status.Latest, status.Current)
}
