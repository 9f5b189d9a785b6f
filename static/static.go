// Package static is a hierarchy of files that are added to
// the generated binary.
//
// The intention is that we can ship a couple of small door programs
// within the emulator, so that it can be tried out without needing to
// find an Amiga executable first.
package static

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed doors/*
var content embed.FS

// GetContent returns the embedded filesystem we store within this package.
func GetContent() embed.FS {
	return content
}

// Doors returns the names of the embedded doors, sorted.
func Doors() []string {
	entries, err := content.ReadDir("doors")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Door returns the executable of the named door.
func Door(name string) ([]byte, error) {
	return fs.ReadFile(content, "doors/"+name)
}
