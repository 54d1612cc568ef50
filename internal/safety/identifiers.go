package safety

import (
	"regexp"
	"strings"

	"github.com/rcourtman/dockfleet/internal/apierrors"
)

// Conservative identifier patterns (spec §4.1): alphanumerics plus the
// punctuation each kind of identifier legitimately needs, no leading dot,
// no whitespace, no traversal (image tags, the only kind that may contain
// "/", are additionally checked for ".." segments).
var (
	hostNamePattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	projectNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	imageTagPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/:-]*$`)
	containerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// ValidateHostName checks a host registry name.
func ValidateHostName(name string) error {
	return validateAgainst("host name", name, hostNamePattern)
}

// ValidateProjectName checks a Compose project name.
func ValidateProjectName(name string) error {
	return validateAgainst("project name", name, projectNamePattern)
}

// ValidateServiceName checks a Compose service name.
func ValidateServiceName(name string) error {
	return validateAgainst("service name", name, serviceNamePattern)
}

// ValidateImageTag checks a Docker image reference.
func ValidateImageTag(tag string) error {
	for _, seg := range strings.Split(tag, "/") {
		if seg == ".." {
			return apierrors.New(apierrors.InvalidInput, "image tag %q must not contain a \"..\" path segment", tag)
		}
	}
	return validateAgainst("image tag", tag, imageTagPattern)
}

// ValidateContainerID checks a container name or ID.
func ValidateContainerID(id string) error {
	return validateAgainst("container id", id, containerIDPattern)
}

func validateAgainst(field, value string, pattern *regexp.Regexp) error {
	if value == "" {
		return apierrors.New(apierrors.InvalidInput, "%s must not be empty", field)
	}
	if len(value) > 255 {
		return apierrors.New(apierrors.InvalidInput, "%s is too long", field)
	}
	if !pattern.MatchString(value) {
		return apierrors.New(apierrors.InvalidInput, "%s %q contains disallowed characters", field, value)
	}
	return nil
}
