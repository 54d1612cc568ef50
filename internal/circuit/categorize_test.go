package circuit

import (
	"errors"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ErrorCategoryTransient},
		{"permission denied", errors.New("permission denied"), ErrorCategoryFatal},
		{"authentication failed", errors.New("ssh: authentication failed"), ErrorCategoryFatal},
		{"unable to authenticate", errors.New("unable to authenticate"), ErrorCategoryFatal},
		{"invalid", errors.New("invalid host key"), ErrorCategoryInvalid},
		{"malformed", errors.New("malformed packet"), ErrorCategoryInvalid},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryTransient},
		{"i/o timeout", errors.New("read: i/o timeout"), ErrorCategoryTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CategorizeError(c.err); got != c.want {
				t.Errorf("CategorizeError(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}
