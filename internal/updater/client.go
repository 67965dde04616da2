package updater

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	update "github.com/inconshreveable/go-update"
)

// BackupSuffix marks the build replaced by the last update or rollback.
const BackupSuffix = ".backup"

// ErrNoBackup is returned by Rollback when no earlier build was kept.
var ErrNoBackup = errors.New("no backup of a previous build")

// Client swaps the running mardec binary for the latest build on a feed.
type Client struct {
	Feed           Feed
	ExecPath       string
	CurrentVersion string
	Out            io.Writer
}

// Status compares the running build with the newest release on a channel.
type Status struct {
	Channel   string
	Current   string
	Latest    string
	Available bool
}

// BackupPath is where the replaced build of execPath is kept.
func BackupPath(execPath string) string {
	return execPath + BackupSuffix
}

// Check reads the feed's VERSION without modifying anything.
func (c *Client) Check(ctx context.Context) (Status, error) {
	channel, err := NormalizeChannel(c.Feed.Channel)
	if err != nil {
		return Status{}, err
	}
	latest, err := c.feed().Latest(ctx)
	if err != nil {
		return Status{}, err
	}
	current := c.version()
	return Status{
		Channel:   channel,
		Current:   current,
		Latest:    latest,
		Available: Newer(latest, current),
	}, nil
}

// Update installs the latest build when it is newer than the running one. A
// published bsdiff patch from the running version is tried first and a
// failed patch falls back to the full binary.
func (c *Client) Update(ctx context.Context) (Status, error) {
	status, err := c.Check(ctx)
	if err != nil {
		return Status{}, err
	}
	if !status.Available {
		c.printf("Already on latest version (%s)\n", status.Current)
		return status, nil
	}
	c.printf("Update available: %s (current: %s)\n", status.Latest, status.Current)

	feed := c.feed()
	sums, err := feed.Checksums(ctx)
	if err != nil {
		return status, err
	}
	asset := AssetName(runtime.GOOS, runtime.GOARCH)
	want, ok := sums[asset]
	if !ok {
		return status, fmt.Errorf("release %s has no %s build", status.Latest, asset)
	}

	opts, err := c.applyOptions(want)
	if err != nil {
		return status, err
	}

	c.printf("Downloading update...\n")
	applied := false
	patch := PatchName(asset, status.Current)
	if patchSum, ok := sums[patch]; ok {
		if err := c.applyPatch(ctx, patch, patchSum, opts); err != nil {
			c.printf("Patch %s failed (%v); downloading the full build\n", patch, err)
		} else {
			applied = true
		}
	}
	if !applied {
		data, err := feed.Download(ctx, asset)
		if err != nil {
			return status, err
		}
		if err := apply(data, opts); err != nil {
			return status, err
		}
	}

	c.printf("Updated to version %s!\n", status.Latest)
	c.printf("Backup saved to: %s\n", opts.OldSavePath)
	c.printf("Restart mardec to use the new version.\n")
	return status, nil
}

func (c *Client) applyPatch(ctx context.Context, name string, sum []byte, opts update.Options) error {
	data, err := c.feed().Download(ctx, name)
	if err != nil {
		return err
	}
	if got := sha256.Sum256(data); !bytes.Equal(got[:], sum) {
		return fmt.Errorf("checksum mismatch for %s", name)
	}
	opts.Patcher = update.NewBSDiffPatcher()
	return apply(data, opts)
}

// Rollback swaps the executable with its backup, so a second rollback
// returns to the build that was running before the first.
func (c *Client) Rollback(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	execPath, err := c.execPath()
	if err != nil {
		return err
	}
	backup, err := os.ReadFile(BackupPath(execPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoBackup
		}
		return fmt.Errorf("read backup: %w", err)
	}
	sum := sha256.Sum256(backup)
	opts, err := c.applyOptions(sum[:])
	if err != nil {
		return err
	}
	if err := apply(backup, opts); err != nil {
		return err
	}
	c.printf("Restored previous build of %s\n", execPath)
	c.printf("Backup saved to: %s\n", opts.OldSavePath)
	return nil
}

func (c *Client) applyOptions(checksum []byte) (update.Options, error) {
	execPath, err := c.execPath()
	if err != nil {
		return update.Options{}, err
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return update.Options{}, fmt.Errorf("stat executable: %w", err)
	}
	opts := update.Options{
		TargetPath:  execPath,
		TargetMode:  info.Mode(),
		Checksum:    checksum,
		Hash:        crypto.SHA256,
		OldSavePath: BackupPath(execPath),
	}
	if err := opts.CheckPermissions(); err != nil {
		return update.Options{}, fmt.Errorf("cannot replace %s: %w", execPath, err)
	}
	return opts, nil
}

func apply(data []byte, opts update.Options) error {
	if err := update.Apply(bytes.NewReader(data), opts); err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			return fmt.Errorf("replace %s: %v (restore failed: %v)", opts.TargetPath, err, rerr)
		}
		return fmt.Errorf("replace %s: %w", opts.TargetPath, err)
	}
	return nil
}

func (c *Client) feed() Feed {
	f := c.Feed
	if f.UserAgent == "" {
		f.UserAgent = fmt.Sprintf("mardec/%s (%s/%s)", c.version(), runtime.GOOS, runtime.GOARCH)
	}
	return f
}

func (c *Client) execPath() (string, error) {
	if p := strings.TrimSpace(c.ExecPath); p != "" {
		return p, nil
	}
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return p, nil
}

func (c *Client) version() string {
	if v := strings.TrimSpace(c.CurrentVersion); v != "" {
		return v
	}
	return "dev"
}

func (c *Client) printf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}
