package match

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a correlator for a backend name.
type Factory func(grayscale bool) (Correlator, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{
		"ncc": func(grayscale bool) (Correlator, error) { return NewNCC(grayscale), nil },
	}
)

// Register makes a backend available to NewCorrelator.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewCorrelator returns the named backend. "opencv" is only available in
// binaries built with -tags gocv.
func NewCorrelator(name string, grayscale bool) (Correlator, error) {
	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown match backend %q (available: %v)", name, Backends())
	}
	return f(grayscale)
}
