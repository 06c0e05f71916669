// Package buildinfo holds build-time metadata, kept apart from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains the values injected with -ldflags at build time.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates a build context.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns when the binary was built.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// Commit returns the source revision.
func (c *Context) Commit() string {
	if c == nil || c.commit == "" {
		return UnknownValue
	}
	return c.commit
}

// String formats the metadata for version output.
func (c *Context) String() string {
	return fmt.Sprintf("vigil %s (commit %s, built %s)", c.Version(), c.Commit(), c.BuildDate())
}
