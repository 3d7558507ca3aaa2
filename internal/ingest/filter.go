// Package ingest turns filesystem events in the watch directory into face
// embedding records.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/kozaktomas/facefind/internal/config"
)

// Decision is the outcome of the noise filter for one path.
type Decision int

const (
	Accepted Decision = iota
	RejectedHidden
	RejectedTemp
	RejectedRaw
	RejectedUnsupported
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedHidden:
		return "hidden file"
	case RejectedTemp:
		return "temporary file"
	case RejectedRaw:
		return "raw camera format"
	case RejectedUnsupported:
		return "unsupported extension"
	default:
		return "unknown"
	}
}

// Filter decides which incoming files are worth embedding. It is pure: no
// filesystem access, no side effects, same answer for the same path every
// time.
type Filter struct {
	allowed      map[string]struct{}
	raw          map[string]struct{}
	tempSuffixes []string
}

// NewFilter builds a filter from the configured file-type policy.
func NewFilter(formats config.FormatsConfig) *Filter {
	f := &Filter{
		allowed:      make(map[string]struct{}, len(formats.AllowedExtensions)),
		raw:          make(map[string]struct{}, len(formats.RawExtensions)),
		tempSuffixes: formats.TempSuffixes,
	}
	for _, ext := range formats.AllowedExtensions {
		f.allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	for _, ext := range formats.RawExtensions {
		f.raw[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return f
}

// Check classifies a path. Only the base filename matters.
func (f *Filter) Check(path string) Decision {
	name := filepath.Base(path)
	lower := strings.ToLower(name)

	if strings.HasPrefix(name, ".") {
		return RejectedHidden
	}
	for _, suffix := range f.tempSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return RejectedTemp
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if _, ok := f.raw[ext]; ok {
		return RejectedRaw
	}
	if _, ok := f.allowed[ext]; !ok {
		return RejectedUnsupported
	}
	return Accepted
}
