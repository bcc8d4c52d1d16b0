package pagefile

import (
	"path/filepath"
	"strings"
)

// Ext is the extension of page files.
const Ext = ".tpg"

// Loader reads page files from an asset directory and keeps them decoded.
type Loader struct {
	assetsPath string
	cache      map[string]*File
}

func NewLoader(assetsPath string) *Loader {
	return &Loader{
		assetsPath: assetsPath,
		cache:      make(map[string]*File),
	}
}

// Path returns the file a level name refers to.
func (l *Loader) Path(name string) string {
	if !strings.HasSuffix(name, Ext) {
		name += Ext
	}
	return filepath.Join(l.assetsPath, name)
}

// Load returns the pages of a level, decoding the file on first use.
func (l *Loader) Load(name string) (*File, error) {
	if f, ok := l.cache[name]; ok {
		return f, nil
	}
	f, err := Load(l.Path(name))
	if err != nil {
		return nil, err
	}
	l.cache[name] = f
	return f, nil
}

// Forget drops a cached file so the next Load reads it again.
func (l *Loader) Forget(name string) { delete(l.cache, name) }
