package runtime

import (
	"path"
	"strings"
)

// NormalizePosixPath resolves p against base using POSIX path semantics. It
// never touches local filesystem APIs: for remote backends the literal bytes
// of base live on a different machine. Idempotent.
func NormalizePosixPath(p, base string) string {
	if p == "" {
		return path.Clean(base)
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}

	return path.Join(base, p)
}

// ExpandPosixHome rewrites a "~" or "~/..." prefix using the given home
// directory, with POSIX semantics.
func ExpandPosixHome(p, home string) string {
	if p == "~" {
		return path.Clean(home)
	}
	if strings.HasPrefix(p, "~/") {
		return path.Join(home, p[2:])
	}

	return p
}
