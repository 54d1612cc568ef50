package safety

import (
	"path"
	"regexp"
	"strings"

	"github.com/rcourtman/dockfleet/internal/apierrors"
)

var securePathCharset = regexp.MustCompile(`^[A-Za-z0-9._\-/]+$`)

// ValidateSecurePath canonicalizes a path (spec §4.1 validateSecurePath):
// requires an absolute path, rejects any ".." segment in the path as given,
// forbids NUL bytes and any character outside [A-Za-z0-9._-/]. "." segments
// and repeated slashes are accepted and removed by normalization. Returns the
// canonical form.
func ValidateSecurePath(raw string) (string, error) {
	if raw == "" {
		return "", apierrors.New(apierrors.InvalidInput, "path must not be empty")
	}
	if strings.ContainsRune(raw, 0) {
		return "", apierrors.New(apierrors.InvalidInput, "path contains a NUL byte")
	}
	if !strings.HasPrefix(raw, "/") {
		return "", apierrors.New(apierrors.InvalidInput, "path %q must be absolute", raw)
	}
	if !securePathCharset.MatchString(raw) {
		return "", apierrors.New(apierrors.InvalidInput, "path %q contains disallowed characters", raw)
	}

	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", apierrors.New(apierrors.InvalidInput, "path %q must not traverse above its root", raw)
		}
	}
	return path.Clean(raw), nil
}
