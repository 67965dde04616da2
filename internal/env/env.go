// Package env reads typed settings from the process environment. Invalid
// values are ignored with a warning logged once per variable.
package env

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	warnLogger func(format string, args ...any) = log.Printf
	warnMu     sync.Mutex
	warnedKeys sync.Map
)

// Lookup returns the trimmed value of key when it is set and non-empty.
func Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// Bool parses key as a boolean. Accepts the strconv forms plus yes/no and
// on/off.
func Bool(key string) (bool, bool) {
	v, ok := Lookup(key)
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, true
	case "no", "off":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		warnInvalid(key, v, "a boolean")
		return false, false
	}
	return b, true
}

// Int parses key as a base-10 integer.
func Int(key string) (int, bool) {
	v, ok := Lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnInvalid(key, v, "an integer")
		return 0, false
	}
	return n, true
}

// List splits key on commas, dropping empty entries.
func List(key string) ([]string, bool) {
	v, ok := Lookup(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}

func warnInvalid(key, value, want string) {
	onceIface, _ := warnedKeys.LoadOrStore(key, &sync.Once{})
	once := onceIface.(*sync.Once)
	once.Do(func() {
		warnMu.Lock()
		logger := warnLogger
		warnMu.Unlock()
		logger("ignoring %s=%q: not %s", key, value, want)
	})
}

// ResetWarningsForTesting clears the cached once guards so tests can verify
// warning behaviour deterministically.
func ResetWarningsForTesting() {
	warnMu.Lock()
	warnedKeys = sync.Map{}
	warnMu.Unlock()
}

// SetWarnLoggerForTesting swaps the logger used for warnings. The returned
// function restores the previous logger and should be deferred in tests.
func SetWarnLoggerForTesting(fn func(format string, args ...any)) (restore func()) {
	warnMu.Lock()
	previous := warnLogger
	warnLogger = fn
	warnMu.Unlock()
	return func() {
		warnMu.Lock()
		warnLogger = previous
		warnMu.Unlock()
	}
}
