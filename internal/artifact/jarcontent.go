package artifact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/Aman-CERP/artifactidx/internal/store"
)

// archiveExtensions lists the artifact types whose class listings are indexed.
var archiveExtensions = map[string]bool{
	"jar": true,
	"war": true,
	"ear": true,
	"par": true,
	"sar": true,
}

// JarContentCreator indexes the class names packaged in Java archives.
type JarContentCreator struct{}

// NewJarContentCreator creates the "jarContent" creator.
func NewJarContentCreator() *JarContentCreator {
	return &JarContentCreator{}
}

// ID implements Creator.
func (j *JarContentCreator) ID() string { return JarContentCreatorID }

// Fields implements Creator.
func (j *JarContentCreator) Fields() []store.Field {
	return []store.Field{{Name: FieldClassNames}}
}

// Populate implements Creator.
func (j *JarContentCreator) Populate(ac *Context) error {
	if ac.Artifact == "" || !archiveExtensions[strings.ToLower(ac.Coordinates.Extension)] {
		return nil
	}
	if ac.Info == nil {
		ac.Info = &Info{Size: -1}
	}

	names, err := ListClasses(ac.Artifact)
	if err != nil {
		return err
	}
	ac.Info.ClassNames = names
	return nil
}

// ListClasses returns the top-level class names inside an archive as
// slash-separated paths with a leading slash, sorted.
func ListClasses(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	prefix := ""
	if strings.EqualFold(filepath.Ext(path), ".war") {
		prefix = "WEB-INF/classes/"
	}

	seen := map[string]bool{}
	for _, f := range r.File {
		name := f.Name
		if f.FileInfo().IsDir() || !strings.HasSuffix(name, ".class") {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(name, prefix)
		}
		// Inner and anonymous classes.
		if strings.Contains(name, "$") {
			continue
		}
		seen["/"+strings.TrimSuffix(name, ".class")] = true
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateDocument implements Creator.
func (j *JarContentCreator) UpdateDocument(info *Info, fields map[string]string) {
	if len(info.ClassNames) > 0 {
		fields[FieldClassNames] = strings.Join(info.ClassNames, "\n")
	}
}

// UpdateInfo implements Creator.
func (j *JarContentCreator) UpdateInfo(fields map[string]string, info *Info) {
	if v := fields[FieldClassNames]; v != "" {
		info.ClassNames = strings.Split(v, "\n")
	}
}
