// Package dispatch implements the closed request dispatcher (C9): an O(1)
// composite-key lookup from "action:subaction" to a handler. The dispatcher
// itself defaults and checks responseFormat; the shared field validators
// below (limit, offset, lines, depth, ...) are called by each handler for
// the fields it reads. Grounded on the teacher's internal/ai/tools/registry.go
// map[string]RegisteredTool shape, generalized from a tool-name key to the
// two-level action/subaction dispatch key this system uses.
package dispatch

import (
	"context"
	"sort"
	"strings"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Catalog is the closed set of (action, subaction) pairs this control plane
// recognizes (spec §6.1). It is fixed at compile time; Dispatcher.MustBeComplete
// panics at startup if any entry here has no registered handler, and
// Dispatch rejects any composite key not present here.
var Catalog = map[string][]string{
	"container": {
		"list", "start", "stop", "restart", "pause", "unpause", "resume",
		"logs", "stats", "inspect", "search", "pull", "recreate", "exec", "top",
	},
	"compose": {
		"list", "status", "up", "down", "restart", "logs", "build", "pull", "recreate", "refresh",
	},
	"docker": {
		"info", "df", "prune", "images", "pull", "build", "rmi", "networks", "volumes",
	},
	"host": {
		"status", "resources", "info", "uptime", "services", "network", "mounts", "ports", "doctor",
	},
	"image": {
		"list", "pull", "build", "remove",
	},
	"scout": {
		"read", "list", "tree", "exec", "find", "transfer", "diff",
		"nodes", "peek", "delta", "emit", "beam", "ps", "df",
		"zfs.pools", "zfs.datasets", "zfs.snapshots",
		"logs.syslog", "logs.journal", "logs.dmesg", "logs.auth",
	},
}

// Key forms the composite dispatch discriminator (spec §4.9 step 1).
func Key(action, subaction string) string {
	return action + ":" + subaction
}

// AllKeys returns every closed-catalog composite key, sorted, for startup
// completeness checks and introspection.
func AllKeys() []string {
	var out []string
	for action, subs := range Catalog {
		for _, sub := range subs {
			out = append(out, Key(action, sub))
		}
	}
	sort.Strings(out)
	return out
}

// IsKnown reports whether (action, subaction) appears in the closed catalog.
func IsKnown(action, subaction string) bool {
	subs, ok := Catalog[action]
	if !ok {
		return false
	}
	for _, s := range subs {
		if s == subaction {
			return true
		}
	}
	return false
}

// Handler is a pure coordinator for one (action, subaction) pair: it reads
// validated fields off env and returns a structured payload plus a short
// human summary, never opening sockets or spawning processes itself
// (spec §4.10) — it calls through to C2/C4/C7/C8/C11 instead.
type Handler func(ctx context.Context, env models.RequestEnvelope) (structured interface{}, summary string, err error)

// Defaults for the common fields shared across many variants (spec §6.1).
const (
	DefaultLimit   = 20
	MaxLimit       = 100
	DefaultLines   = 100
	MaxLines       = 500
	MaxDepth       = 5
	MaxMaxSize     = 10 * 1024 * 1024
	MaxTimeoutMs   = 300000
	MaxBufferBytes = 10 * 1024 * 1024
)

// ValidateLimit applies the limit field's default/range (spec §6.1, §8
// property 10): 1-100, default 20.
func ValidateLimit(fields map[string]interface{}) (int, error) {
	v, ok := intField(fields, "limit")
	if !ok {
		return DefaultLimit, nil
	}
	if v < 1 || v > MaxLimit {
		return 0, apierrors.New(apierrors.InvalidInput, "limit must be between 1 and %d", MaxLimit)
	}
	return v, nil
}

// ValidateOffset applies the offset field's default/range.
func ValidateOffset(fields map[string]interface{}) (int, error) {
	v, ok := intField(fields, "offset")
	if !ok {
		return 0, nil
	}
	if v < 0 {
		return 0, apierrors.New(apierrors.InvalidInput, "offset must be >= 0")
	}
	return v, nil
}

// ValidateLines applies container.logs's line-count cap (spec §8 property 11).
func ValidateLines(fields map[string]interface{}) (int, error) {
	v, ok := intField(fields, "lines")
	if !ok {
		return DefaultLines, nil
	}
	if v < 1 || v > MaxLines {
		return 0, apierrors.New(apierrors.InvalidInput, "lines must be between 1 and %d", MaxLines)
	}
	return v, nil
}

// ValidateDepth bounds recursive scout operations (tree/find).
func ValidateDepth(fields map[string]interface{}, fallback int) (int, error) {
	v, ok := intField(fields, "depth")
	if !ok {
		return fallback, nil
	}
	if v < 1 || v > MaxDepth {
		return 0, apierrors.New(apierrors.InvalidInput, "depth must be between 1 and %d", MaxDepth)
	}
	return v, nil
}

// ValidateMaxSize bounds scout.read's size cap.
func ValidateMaxSize(fields map[string]interface{}, fallback int64) (int64, error) {
	v, ok := intField(fields, "maxSize")
	if !ok {
		return fallback, nil
	}
	if v < 1 || int64(v) > MaxMaxSize {
		return 0, apierrors.New(apierrors.InvalidInput, "maxSize must be between 1 and %d", MaxMaxSize)
	}
	return int64(v), nil
}

// ValidateTimeoutMs bounds an executor timeout field.
func ValidateTimeoutMs(fields map[string]interface{}, fallback int) (int, error) {
	v, ok := intField(fields, "timeoutMs")
	if !ok {
		return fallback, nil
	}
	if v < 1 || v > MaxTimeoutMs {
		return 0, apierrors.New(apierrors.InvalidInput, "timeoutMs must be between 1 and %d", MaxTimeoutMs)
	}
	return v, nil
}

// ValidateMaxBufferBytes bounds an executor's output buffer cap.
func ValidateMaxBufferBytes(fields map[string]interface{}, fallback int) (int, error) {
	v, ok := intField(fields, "maxBufferBytes")
	if !ok {
		return fallback, nil
	}
	if v < 1 || v > MaxBufferBytes {
		return 0, apierrors.New(apierrors.InvalidInput, "maxBufferBytes must be between 1 and %d", MaxBufferBytes)
	}
	return v, nil
}

// ValidateResponseFormat returns format defaulted to text, or an error if it
// is neither text nor structured.
func ValidateResponseFormat(format string) (string, error) {
	if format == "" {
		return models.FormatText, nil
	}
	if format != models.FormatText && format != models.FormatStructured {
		return "", apierrors.New(apierrors.InvalidInput, "responseFormat must be %q or %q", models.FormatText, models.FormatStructured)
	}
	return format, nil
}

// StringField reads a string field, returning "" if absent or the wrong type.
func StringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// BoolField reads a bool field, defaulting to false.
func BoolField(fields map[string]interface{}, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// StringSliceField reads a []string-shaped field (tolerating []interface{}
// as produced by generic JSON decoding).
func StringSliceField(fields map[string]interface{}, key string) []string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intField(fields map[string]interface{}, key string) (int, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// requireNonEmpty validates a required free-form string field is present.
func requireNonEmpty(fields map[string]interface{}, key string) (string, error) {
	s := StringField(fields, key)
	if strings.TrimSpace(s) == "" {
		return "", apierrors.New(apierrors.InvalidInput, "%s is required", key)
	}
	return s, nil
}

// RequireNonEmpty exports requireNonEmpty for handlers in other packages.
func RequireNonEmpty(fields map[string]interface{}, key string) (string, error) {
	return requireNonEmpty(fields, key)
}
