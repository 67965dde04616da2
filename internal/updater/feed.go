// Package updater implements the opt-in mardec self-update. A release feed
// publishes, per channel, a VERSION file, one binary per platform and a
// signed SHA256SUMS listing. Binaries are swapped in place and the replaced
// build is kept next to the executable as <exe>.backup.
package updater

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/RowanDark/mardec/internal/env"
)

// DefaultBaseURL hosts one directory per release channel.
const DefaultBaseURL = "https://raw.githubusercontent.com/anbuinfosec/mardec/main/releases"

const (
	// ChannelStable is the default release channel.
	ChannelStable = "stable"
	// ChannelBeta carries prerelease builds.
	ChannelBeta = "beta"
)

const (
	versionFile   = "VERSION"
	checksumsFile = "SHA256SUMS"

	// sumsPublicKeyBase64 verifies SHA256SUMS.sig. MARDEC_UPDATER_PUBLIC_KEY
	// replaces it for private feeds.
	sumsPublicKeyBase64 = "2JZvnto5mGl5Ux7PP7iKenTCp096w7c3POVWYEAywPw="
	publicKeyEnv        = "MARDEC_UPDATER_PUBLIC_KEY"

	maxFeedFile = 64 << 10
)

// NormalizeChannel lowercases channel and rejects unknown names. An empty
// channel means stable.
func NormalizeChannel(channel string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(channel))
	switch c {
	case "":
		return ChannelStable, nil
	case ChannelStable, ChannelBeta:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", channel)
}

// AssetName is the published binary name for a platform.
func AssetName(goos, goarch string) string {
	name := "mardec_" + goos + "_" + goarch
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// PatchName is the bsdiff patch that turns the from release of asset into
// the latest one.
func PatchName(asset, from string) string {
	return asset + ".from-" + strings.TrimPrefix(strings.TrimSpace(from), "v") + ".bsdiff"
}

// Feed reads one channel of a release feed.
type Feed struct {
	HTTPClient *http.Client
	BaseURL    string
	Channel    string
	UserAgent  string
}

// Latest returns the version named by the channel's VERSION file.
func (f Feed) Latest(ctx context.Context) (string, error) {
	data, err := f.fetch(ctx, versionFile, maxFeedFile)
	if err != nil {
		return "", err
	}
	latest := strings.TrimSpace(string(data))
	if !semver.IsValid(canonical(latest)) {
		return "", fmt.Errorf("%s %q is not a semantic version", versionFile, latest)
	}
	return latest, nil
}

// Checksums downloads SHA256SUMS, verifies its detached signature and returns
// the digests keyed by file name.
func (f Feed) Checksums(ctx context.Context) (map[string][]byte, error) {
	sums, err := f.fetch(ctx, checksumsFile, maxFeedFile)
	if err != nil {
		return nil, err
	}
	sig, err := f.fetch(ctx, checksumsFile+".sig", maxFeedFile)
	if err != nil {
		return nil, err
	}
	if err := verifySums(sums, sig); err != nil {
		return nil, err
	}
	return ParseChecksums(sums)
}

// Download fetches a release file without a size limit.
func (f Feed) Download(ctx context.Context, name string) ([]byte, error) {
	return f.fetch(ctx, name, -1)
}

func (f Feed) fileURL(name string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	channel, err := NormalizeChannel(f.Channel)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u.Path = path.Join(u.Path, channel, name)
	return u.String(), nil
}

func (f Feed) fetch(ctx context.Context, name string, limit int64) ([]byte, error) {
	target, err := f.fileURL(name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", name, ErrNotPublished)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", name, resp.StatusCode)
	}
	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// ErrNotPublished reports a file the feed does not carry.
var ErrNotPublished = errors.New("not published")

// ParseChecksums reads sha256sum output: a hex digest, whitespace, and a file
// name optionally marked binary with a leading '*'.
func ParseChecksums(data []byte) (map[string][]byte, error) {
	sums := make(map[string][]byte)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s line %d: want digest and name", checksumsFile, line)
		}
		digest, err := hex.DecodeString(fields[0])
		if err != nil || len(digest) != 32 {
			return nil, fmt.Errorf("%s line %d: bad sha256 digest", checksumsFile, line)
		}
		sums[strings.TrimPrefix(fields[1], "*")] = digest
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", checksumsFile, err)
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("%s is empty", checksumsFile)
	}
	return sums, nil
}

func verifySums(sums, sigText []byte) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(sigText)))
	if err != nil {
		return fmt.Errorf("decode %s signature: %w", checksumsFile, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%s signature has length %d", checksumsFile, len(sig))
	}
	key, err := publicKey()
	if err != nil {
		return err
	}
	if !ed25519.Verify(key, sums, sig) {
		return fmt.Errorf("%s signature does not match", checksumsFile)
	}
	return nil
}

func publicKey() (ed25519.PublicKey, error) {
	encoded := sumsPublicKeyBase64
	if override, ok := env.Lookup(publicKeyEnv); ok {
		encoded = override
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode updater public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("updater public key has length %d", len(key))
	}
	return ed25519.PublicKey(key), nil
}

// canonical adds the "v" prefix semver expects.
func canonical(version string) string {
	version = strings.TrimSpace(version)
	if version == "" || strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// Newer reports whether candidate is a later release than current. A current
// version that is not semantic, such as "dev", is older than any release.
func Newer(candidate, current string) bool {
	c, cur := canonical(candidate), canonical(current)
	if !semver.IsValid(c) {
		return false
	}
	if !semver.IsValid(cur) {
		return true
	}
	return semver.Compare(c, cur) > 0
}
