// Package artifact models repository artifacts and the creators that turn
// artifact files into index documents.
package artifact

import (
	"fmt"
	"strings"
)

// NotAvailable stands in for an absent classifier inside a UInfo.
const NotAvailable = "NA"

// Coordinates identify one artifact file in a Maven-2 layout repository.
type Coordinates struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Extension  string
}

// UInfo is the unique document key: group|artifact|version|classifier|extension.
func (c Coordinates) UInfo() string {
	classifier := c.Classifier
	if classifier == "" {
		classifier = NotAvailable
	}
	return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, classifier, c.Extension}, "|")
}

// GroupKey is the version-less key used by grouped searches.
func (c Coordinates) GroupKey() string {
	return c.GroupID + ":" + c.ArtifactID
}

// String renders group:artifact:version[:classifier]@extension.
func (c Coordinates) String() string {
	s := c.GroupID + ":" + c.ArtifactID + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	if c.Extension != "" {
		s += "@" + c.Extension
	}
	return s
}

// Validate checks that the mandatory parts are present.
func (c Coordinates) Validate() error {
	switch {
	case c.GroupID == "":
		return fmt.Errorf("coordinates %q: groupId is required", c)
	case c.ArtifactID == "":
		return fmt.Errorf("coordinates %q: artifactId is required", c)
	case c.Version == "":
		return fmt.Errorf("coordinates %q: version is required", c)
	}
	return nil
}

// ParseUInfo is the inverse of Coordinates.UInfo.
func ParseUInfo(uinfo string) (Coordinates, error) {
	parts := strings.Split(uinfo, "|")
	if len(parts) != 5 {
		return Coordinates{}, fmt.Errorf("malformed uinfo %q", uinfo)
	}
	c := Coordinates{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
		Classifier: parts[3],
		Extension:  parts[4],
	}
	if c.Classifier == NotAvailable {
		c.Classifier = ""
	}
	return c, nil
}
