package artifact

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/artifactidx/internal/store"
)

// MinimalCreator indexes coordinates, pom metadata, file size, timestamp and SHA-1.
type MinimalCreator struct{}

// NewMinimalCreator creates the "min" creator.
func NewMinimalCreator() *MinimalCreator {
	return &MinimalCreator{}
}

// ID implements Creator.
func (m *MinimalCreator) ID() string { return MinimalCreatorID }

// Fields implements Creator.
func (m *MinimalCreator) Fields() []store.Field {
	return []store.Field{
		{Name: FieldUInfo, Keyword: true},
		{Name: FieldGroupID, Keyword: true},
		{Name: FieldArtifactID, Keyword: true},
		{Name: FieldVersion, Keyword: true},
		{Name: FieldClassifier, Keyword: true},
		{Name: FieldExtension, Keyword: true},
		{Name: FieldPackaging, Keyword: true},
		{Name: FieldName},
		{Name: FieldDescription},
		{Name: FieldLastModified, Keyword: true},
		{Name: FieldSize, Keyword: true},
		{Name: FieldSHA1, Keyword: true},
	}
}

// pom is the subset of a project object model the creator reads.
type pom struct {
	GroupID     string `xml:"groupId"`
	ArtifactID  string `xml:"artifactId"`
	Version     string `xml:"version"`
	Packaging   string `xml:"packaging"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Parent      struct {
		GroupID string `xml:"groupId"`
		Version string `xml:"version"`
	} `xml:"parent"`
}

func readPOM(path string) (*pom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var p pom
	dec := xml.NewDecoder(bufio.NewReader(f))
	dec.Strict = false
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse pom %s: %w", path, err)
	}
	if p.GroupID == "" {
		p.GroupID = p.Parent.GroupID
	}
	if p.Version == "" {
		p.Version = p.Parent.Version
	}
	return &p, nil
}

// Populate implements Creator.
func (m *MinimalCreator) Populate(ac *Context) error {
	if ac.Info == nil {
		ac.Info = &Info{Size: -1}
	}
	info := ac.Info
	info.Coordinates = ac.Coordinates

	if ac.POM != "" {
		p, err := readPOM(ac.POM)
		if err != nil {
			ac.AddError(err)
		} else {
			info.Packaging = strings.TrimSpace(p.Packaging)
			info.Name = strings.TrimSpace(p.Name)
			info.Description = strings.TrimSpace(p.Description)
		}
	}
	if info.Packaging == "" {
		info.Packaging = ac.Coordinates.Extension
	}
	if info.Packaging == "" {
		info.Packaging = "jar"
	}

	file := ac.Artifact
	if file == "" {
		file = ac.POM
	}
	if file == "" {
		return nil
	}

	st, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	info.Size = st.Size()
	info.LastModified = st.ModTime().UTC().Truncate(time.Millisecond)

	if sum, ok := readChecksumFile(file + ".sha1"); ok {
		info.SHA1 = sum
		return nil
	}
	sum, err := SHA1File(file)
	if err != nil {
		return err
	}
	info.SHA1 = sum
	return nil
}

// readChecksumFile reads the first token of a sidecar checksum file.
func readChecksumFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || len(fields[0]) != 40 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

// UpdateDocument implements Creator.
func (m *MinimalCreator) UpdateDocument(info *Info, fields map[string]string) {
	fields[FieldUInfo] = info.UInfo()
	fields[FieldGroupID] = info.GroupID
	fields[FieldArtifactID] = info.ArtifactID
	fields[FieldVersion] = info.Version
	fields[FieldExtension] = info.Extension
	setIfNotEmpty(fields, FieldClassifier, info.Classifier)
	setIfNotEmpty(fields, FieldPackaging, info.Packaging)
	setIfNotEmpty(fields, FieldName, info.Name)
	setIfNotEmpty(fields, FieldDescription, info.Description)
	setIfNotEmpty(fields, FieldSHA1, info.SHA1)
	if !info.LastModified.IsZero() {
		fields[FieldLastModified] = strconv.FormatInt(info.LastModified.UnixMilli(), 10)
	}
	if info.Size >= 0 {
		fields[FieldSize] = strconv.FormatInt(info.Size, 10)
	}
}

// UpdateInfo implements Creator.
func (m *MinimalCreator) UpdateInfo(fields map[string]string, info *Info) {
	info.GroupID = fields[FieldGroupID]
	info.ArtifactID = fields[FieldArtifactID]
	info.Version = fields[FieldVersion]
	info.Classifier = fields[FieldClassifier]
	info.Extension = fields[FieldExtension]
	info.Packaging = fields[FieldPackaging]
	info.Name = fields[FieldName]
	info.Description = fields[FieldDescription]
	info.SHA1 = fields[FieldSHA1]
	if v, err := strconv.ParseInt(fields[FieldLastModified], 10, 64); err == nil {
		info.LastModified = time.UnixMilli(v).UTC()
	}
	if v, err := strconv.ParseInt(fields[FieldSize], 10, 64); err == nil {
		info.Size = v
	}
}

func setIfNotEmpty(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
