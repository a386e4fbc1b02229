package filter

import (
	"regexp"

	"github.com/vburojevic/ttycast/internal/domain"
)

// Pipeline combines a payload pattern, exclude patterns and where clauses.
// A nil Pipeline matches everything.
type Pipeline struct {
	pattern  *regexp.Regexp
	excludes []*regexp.Regexp
	where    *WhereFilter
}

// NewPipeline returns nil when no filter is configured
func NewPipeline(pattern *regexp.Regexp, excludes []*regexp.Regexp, where *WhereFilter) *Pipeline {
	if pattern == nil && len(excludes) == 0 && where == nil {
		return nil
	}
	return &Pipeline{pattern: pattern, excludes: excludes, where: where}
}

// Match applies the pattern, then the excludes, then the where clauses
func (p *Pipeline) Match(rec *domain.FrameRecord) bool {
	if p == nil {
		return true
	}
	if p.pattern != nil && !p.pattern.MatchString(rec.Preview) {
		return false
	}
	for _, ex := range p.excludes {
		if ex.MatchString(rec.Preview) {
			return false
		}
	}
	return p.where.Match(rec)
}
