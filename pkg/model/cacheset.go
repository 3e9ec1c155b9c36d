package model

// CacheSet is one named managed cache directory pair. Hot sets are mirrored
// between the runtime and persistent paths; cold sets are pre-existing bind
// mounts that are validated but never copied.
type CacheSet struct {
	Name           string   `yaml:"name" json:"name"`
	RuntimePath    string   `yaml:"runtime_path" json:"runtime_path"`
	PersistentPath string   `yaml:"persistent_path" json:"persistent_path"`
	Excludes       []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Cold           bool     `yaml:"cold,omitempty" json:"cold,omitempty"`
}
