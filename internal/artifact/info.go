package artifact

import (
	"cmp"
	"time"
)

// Field names of index documents.
const (
	FieldUInfo        = "uinfo"
	FieldGroupID      = "groupId"
	FieldArtifactID   = "artifactId"
	FieldVersion      = "version"
	FieldClassifier   = "classifier"
	FieldExtension    = "extension"
	FieldPackaging    = "packaging"
	FieldName         = "name"
	FieldDescription  = "description"
	FieldLastModified = "lastModified"
	FieldSize         = "size"
	FieldSHA1         = "sha1"
	FieldClassNames   = "classNames"
)

// Info is the denormalized metadata of one index hit.
type Info struct {
	Coordinates

	ContextID    string
	RepositoryID string

	Packaging    string
	Name         string
	Description  string
	LastModified time.Time
	// Size is the artifact file size in bytes, -1 when unknown.
	Size       int64
	SHA1       string
	ClassNames []string
}

// Compare orders infos by uinfo, then by context id. The order is ordinal
// (byte-wise) and stable for unchanged data.
func Compare(a, b *Info) int {
	if c := cmp.Compare(a.UInfo(), b.UInfo()); c != 0 {
		return c
	}
	return cmp.Compare(a.ContextID, b.ContextID)
}

// Context is one discovered artifact on its way into an index. It is
// created by the scanner or by callers and consumed immediately.
type Context struct {
	// Artifact is the main artifact file, empty for pom-only artifacts.
	Artifact string
	// POM is the artifact's pom file, empty when absent.
	POM         string
	Coordinates Coordinates
	// Info is filled by creators; callers may preset it to skip extraction.
	Info *Info
	// Errors collects non-fatal extraction failures.
	Errors []error
}

// AddError records a non-fatal extraction failure.
func (c *Context) AddError(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}
