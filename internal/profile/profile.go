package profile

import (
	"image"
	"sort"
)

// DefaultName is the preset used when none is requested. It reproduces
// the classic repair settings: quality 90, no chroma subsampling.
const DefaultName = "classic"

// Profile defines JPEG encoding parameters for a repair run.
type Profile struct {
	Name        string
	Quality     int                       // encoding quality 1-100
	Subsampling image.YCbCrSubsampleRatio // chroma subsampling
}

// Built-in profiles.
var profiles = map[string]Profile{
	"classic": {
		Name:        "classic",
		Quality:     90,
		Subsampling: image.YCbCrSubsampleRatio444,
	},
	"archive": {
		Name:        "archive",
		Quality:     95,
		Subsampling: image.YCbCrSubsampleRatio444,
	},
	"web": {
		Name:        "web",
		Quality:     82,
		Subsampling: image.YCbCrSubsampleRatio420,
	},
}

// Get returns a profile by name. Falls back to classic if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles[DefaultName]
	p.Name = name // preserve requested name
	return p
}

// Known reports whether name is a built-in profile.
func Known(name string) bool {
	_, ok := profiles[name]
	return ok
}

// Names returns the built-in profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
