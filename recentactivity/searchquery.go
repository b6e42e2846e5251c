package recentactivity

import (
	"context"
	_ "embed"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

//go:embed seuqa_mappings.yaml
var defaultSearchEngines []byte

// SearchEngine describes how to find the query in one engine's URLs.
type SearchEngine struct {
	Engine          string   `yaml:"engine"`
	DomainSubstring string   `yaml:"domain_substring"`
	SplitTokens     []string `yaml:"split_tokens"`
}

type searchEngineFile struct {
	Engines []SearchEngine `yaml:"engines"`
}

// LoadSearchEngines reads engine mappings from path, or the built-in
// list when path is empty.
func LoadSearchEngines(path string) ([]SearchEngine, error) {
	data := defaultSearchEngines
	source := "built-in search engine mappings"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read search engine mappings %s", path)
		}
		data, source = b, path
	}
	return parseSearchEngines(data, source)
}

func parseSearchEngines(data []byte, source string) ([]SearchEngine, error) {
	var file searchEngineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapMalformed(err, "failed to parse "+source)
	}
	for i, e := range file.Engines {
		if e.Engine == "" || e.DomainSubstring == "" || len(e.SplitTokens) == 0 {
			return nil, errors.WithHint(
				errors.WrapMalformed(errors.Newf("engine #%d is incomplete", i+1), "failed to parse "+source),
				"every engine needs engine, domain_substring and split_tokens",
			)
		}
	}
	return file.Engines, nil
}

// SearchQueryAnalyzer finds search engine queries in the web history and
// bookmark artifacts created by the browser extractors. It must run after
// them.
type SearchQueryAnalyzer struct {
	extractorBase
	engines []SearchEngine
	counts  map[string]int
}

// NewSearchQueryAnalyzer creates the analyzer over the engine mappings.
func NewSearchQueryAnalyzer(services *ingest.Services, engines []SearchEngine) *SearchQueryAnalyzer {
	return &SearchQueryAnalyzer{
		extractorBase: newExtractorBase("Search Engine Query Analyzer", services),
		engines:       engines,
		counts:        make(map[string]int),
	}
}

// Init resets per-run counters.
func (s *SearchQueryAnalyzer) Init(ctx context.Context) error {
	if len(s.engines) == 0 {
		return errors.Wrap(errors.ErrInvalidRequest, "no search engines configured")
	}
	s.counts = make(map[string]int)
	return nil
}

func (s *SearchQueryAnalyzer) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer s.fireProduced()

	for _, artifactType := range []blackboard.ArtifactType{blackboard.ArtifactWebHistory, blackboard.ArtifactWebBookmark} {
		if status.IsCancelled() {
			break
		}

		artifacts, err := s.services.Blackboard.ArtifactsInDataSource(ctx, ds.Name(), artifactType)
		if err != nil {
			s.log.Errorw("Failed to read browser artifacts",
				logger.FieldArtifactType, artifactType,
				logger.FieldError, err,
			)
			s.errorf("Error while reading %s artifacts.", artifactType.DisplayName())
			continue
		}

		for _, a := range artifacts {
			s.analyze(ctx, a)
		}
	}

	s.log.Infow("Search queries found", "by_engine", s.counts)
	return ingest.Success()
}

func (s *SearchQueryAnalyzer) analyze(ctx context.Context, a *blackboard.Artifact) {
	urlAttr, ok := a.Attribute(blackboard.AttrURL)
	if !ok {
		return
	}
	rawURL := urlAttr.String()

	engine := s.engineFor(rawURL)
	if engine == nil {
		return
	}
	query := extractSearchQuery(rawURL, engine.SplitTokens)
	if query == "" {
		return
	}

	attrs := []blackboard.Attribute{
		s.str(blackboard.AttrDomain, engine.Engine),
		s.str(blackboard.AttrText, query),
	}
	if prog, ok := a.Attribute(blackboard.AttrProgName); ok {
		attrs = append(attrs, s.str(blackboard.AttrProgName, prog.String()))
	}
	if t, ok := a.Attribute(blackboard.AttrDateTimeAccessed); ok {
		attrs = append(attrs, s.secs(blackboard.AttrDateTimeAccessed, t.Int()))
	} else if t, ok := a.Attribute(blackboard.AttrDateTimeCreated); ok {
		attrs = append(attrs, s.secs(blackboard.AttrDateTimeAccessed, t.Int()))
	}

	if s.addArtifact(ctx, a.ContentRef, blackboard.ArtifactWebSearchQuery, attrs) {
		s.counts[engine.Engine]++
	}
}

func (s *SearchQueryAnalyzer) engineFor(rawURL string) *SearchEngine {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Host)
	for i := range s.engines {
		if strings.Contains(host, strings.ToLower(s.engines[i].DomainSubstring)) {
			return &s.engines[i]
		}
	}
	return nil
}

// extractSearchQuery returns the decoded text following the first split
// token found in rawURL, up to the next parameter.
func extractSearchQuery(rawURL string, tokens []string) string {
	for _, token := range tokens {
		i := strings.Index(rawURL, token)
		if i < 0 {
			continue
		}
		q := rawURL[i+len(token):]
		if end := strings.IndexAny(q, "&#"); end >= 0 {
			q = q[:end]
		}
		decoded, err := url.QueryUnescape(q)
		if err != nil {
			decoded = q
		}
		if decoded = strings.TrimSpace(decoded); decoded != "" {
			return decoded
		}
	}
	return ""
}
