package recentactivity

import (
	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
)

// Registry is the ordered list of extractors for one run. Order is
// execution order: an extractor may read artifacts of those before it.
type Registry struct {
	all      []Extractor
	browsers []Extractor
}

// NewRegistry validates that names are unique and that every browser
// extractor is also in all.
func NewRegistry(all []Extractor, browsers []Extractor) (*Registry, error) {
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		if e == nil {
			return nil, errors.Wrap(errors.ErrInvalidRequest, "nil extractor")
		}
		if seen[e.Name()] {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "duplicate extractor %q", e.Name())
		}
		seen[e.Name()] = true
	}

	for _, b := range browsers {
		found := false
		for _, e := range all {
			if e == b {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "browser extractor %q is not registered", b.Name())
		}
	}

	return &Registry{
		all:      append([]Extractor(nil), all...),
		browsers: append([]Extractor(nil), browsers...),
	}, nil
}

// DefaultRegistry builds the standard pipeline: browsers first, then
// recent documents, then the search query analyzer (which reads browser
// artifacts), and the registry last because it is slowest.
func DefaultRegistry(services *ingest.Services, cfg *am.Config) (*Registry, error) {
	mappings, err := LoadSearchEngines(cfg.RecentActivity.SearchQuery.MappingsFile)
	if err != nil {
		return nil, err
	}

	chrome := NewChrome(services)
	firefox := NewFirefox(services)
	ie := NewInternetExplorer(services)
	recentDocs := NewRecentDocuments(services)
	searchQuery := NewSearchQueryAnalyzer(services, mappings)
	registry := NewRegistryAnalyzer(services, cfg.RecentActivity.Registry.RipperCommand)

	return NewRegistry(
		[]Extractor{chrome, firefox, ie, recentDocs, searchQuery, registry},
		[]Extractor{chrome, firefox, ie},
	)
}

// Extractors returns the extractors in execution order.
func (r *Registry) Extractors() []Extractor {
	return append([]Extractor(nil), r.all...)
}

// Browsers returns the data presence subset in registry order.
func (r *Registry) Browsers() []Extractor {
	var out []Extractor
	for _, e := range r.all {
		if r.isBrowser(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) isBrowser(e Extractor) bool {
	for _, b := range r.browsers {
		if b == e {
			return true
		}
	}
	return false
}

// Len returns the number of extractors.
func (r *Registry) Len() int {
	return len(r.all)
}
