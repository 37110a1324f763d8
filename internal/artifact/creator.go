package artifact

import (
	"fmt"
	"sort"

	"github.com/Aman-CERP/artifactidx/internal/store"
)

// Creator extracts one slice of artifact metadata and maps it to and from
// index document fields.
type Creator interface {
	// ID names the creator in configuration.
	ID() string
	// Fields lists the document fields the creator writes.
	Fields() []store.Field
	// Populate reads artifact files and fills ac.Info.
	Populate(ac *Context) error
	// UpdateDocument writes info into document fields.
	UpdateDocument(info *Info, fields map[string]string)
	// UpdateInfo reads document fields back into info.
	UpdateInfo(fields map[string]string, info *Info)
}

// Creator ids.
const (
	MinimalCreatorID    = "min"
	JarContentCreatorID = "jarContent"
)

var builtinCreators = map[string]func() Creator{
	MinimalCreatorID:    func() Creator { return NewMinimalCreator() },
	JarContentCreatorID: func() Creator { return NewJarContentCreator() },
}

// CreatorIDs lists the built-in creator ids in sorted order.
func CreatorIDs() []string {
	ids := make([]string, 0, len(builtinCreators))
	for id := range builtinCreators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCreators returns the creators used when none are configured.
func DefaultCreators() []Creator {
	return []Creator{NewMinimalCreator(), NewJarContentCreator()}
}

// CreatorsByID resolves configured creator ids. The minimal creator is
// always first since every other field hangs off its coordinates.
func CreatorsByID(ids []string) ([]Creator, error) {
	if len(ids) == 0 {
		return DefaultCreators(), nil
	}

	creators := []Creator{NewMinimalCreator()}
	seen := map[string]bool{MinimalCreatorID: true}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		factory, ok := builtinCreators[id]
		if !ok {
			return nil, fmt.Errorf("unknown index creator %q", id)
		}
		seen[id] = true
		creators = append(creators, factory())
	}
	return creators, nil
}

// Schema merges the fields of every creator.
func Schema(creators []Creator) []store.Field {
	seen := map[string]bool{}
	var fields []store.Field
	for _, c := range creators {
		for _, f := range c.Fields() {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// Document builds the index document for info.
func Document(info *Info, creators []Creator) store.Document {
	fields := map[string]string{}
	for _, c := range creators {
		c.UpdateDocument(info, fields)
	}
	return store.Document{ID: info.UInfo(), Fields: fields}
}

// InfoFromDocument rebuilds an Info from stored fields.
func InfoFromDocument(doc store.Document, creators []Creator, contextID, repositoryID string) *Info {
	info := &Info{ContextID: contextID, RepositoryID: repositoryID, Size: -1}
	for _, c := range creators {
		c.UpdateInfo(doc.Fields, info)
	}
	if info.GroupID == "" {
		if coords, err := ParseUInfo(doc.ID); err == nil {
			info.Coordinates = coords
		}
	}
	return info
}
