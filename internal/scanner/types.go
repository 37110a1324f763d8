// Package scanner walks a Maven-2 layout repository and reports every
// artifact it finds.
package scanner

import (
	"context"
	"time"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
)

// IgnoreFile holds extra exclusion patterns at a repository root.
const IgnoreFile = ".artifactidxignore"

// VisitFunc receives each discovered artifact. Returning an error aborts the scan.
type VisitFunc func(ctx context.Context, ac *artifact.Context) error

// Request configures one scan.
type Request struct {
	// Root is the repository root.
	Root string
	// FromPath restricts the scan to a subtree, relative to Root or absolute.
	FromPath string
	// Exclude lists gitignore-style patterns relative to Root, such as
	// "org/legacy/**", "target/" or "*-tests.jar".
	Exclude []string
	Visit   VisitFunc
}

// Result summarizes a finished scan.
type Result struct {
	Directories int
	Discovered  int
	Duration    time.Duration
}
