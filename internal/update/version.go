package update

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Ordering is the result of comparing two version tags.
type Ordering int

// Orderings returned by Compare.
const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

// ParseVersion parses a release tag such as "v1.4", "V1.4.0" or "1.4.0-rc.1".
// Missing minor and patch segments are zero.
func ParseVersion(tag string) (*semver.Version, error) {
	s := strings.TrimSpace(tag)
	if s == "" {
		return nil, newError(ErrCodeInvalidVersion, "version is empty", nil)
	}
	if s[0] == 'V' {
		s = "v" + s[1:]
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, newError(ErrCodeInvalidVersion, fmt.Sprintf("invalid version %q", tag), err)
	}
	return v, nil
}

// Compare orders two release tags numerically by major.minor.patch.
//
// Pre-release tags sort below the release they precede, so 1.0.0-rc.1 is
// Less than 1.0.0. Build metadata is ignored: 1.0.0+a and 1.0.0+b are Equal.
func Compare(a, b string) (Ordering, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return Equal, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return Equal, err
	}
	return Ordering(va.Compare(vb)), nil
}
