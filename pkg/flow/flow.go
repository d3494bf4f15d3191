// Package flow handles parsing and representation of YAML browser flows.
package flow

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (url, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name         string                 `yaml:"name"`
	URL          string                 `yaml:"url"` // Opened before the first step
	Tags         []string               `yaml:"tags"`
	Env          map[string]string      `yaml:"env"`
	Capabilities map[string]interface{} `yaml:"capabilities"` // Merged over the workspace capabilities
	Timeout      int                    `yaml:"timeout"`      // Flow timeout in ms
}
