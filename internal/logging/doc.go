// Package logging configures structured slog output for artifactidx.
// Logs are JSON lines written to a size-rotated file under ~/.artifactidx/logs/
// and optionally mirrored to stderr. The MCP server disables the stderr mirror
// so protocol traffic on stdio stays clean.
package logging
