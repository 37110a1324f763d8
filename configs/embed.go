// Package configs embeds the configuration templates written by
// `artifactidx init`.
package configs

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ProjectConfigTemplate is the source of a new .artifactidx.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// ProjectValues fill the placeholders of ProjectConfigTemplate.
type ProjectValues struct {
	ContextID  string
	Repository string
}

var projectTemplate = template.Must(template.New("project").Parse(ProjectConfigTemplate))

// RenderProject returns the project configuration for v.
func RenderProject(v ProjectValues) (string, error) {
	if v.ContextID == "" || v.Repository == "" {
		return "", errors.New("context id and repository are required")
	}
	v.ContextID = quote(v.ContextID)
	v.Repository = quote(v.Repository)
	var b strings.Builder
	if err := projectTemplate.Execute(&b, v); err != nil {
		return "", fmt.Errorf("failed to render project config: %w", err)
	}
	return b.String(), nil
}

// quote renders s as a YAML double-quoted scalar.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
