package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vburojevic/ttycast/internal/domain"
	"github.com/vburojevic/ttycast/internal/ttylog"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
	number   int64          // Parsed value for numeric fields
	numeric  bool
}

var numericFields = map[string]bool{
	"op":      true,
	"channel": true,
	"dir":     true,
	"len":     true,
	"sec":     true,
	"index":   true,
	"offset":  true,
}

var fieldAliases = map[string]string{
	"direction": "dir",
	"length":    "len",
	"payload":   "text",
	"preview":   "text",
}

// ParseWhereClause parses a where clause like "op=write" or "len>=10"
// Supported operators: =, !=, ~, !~, >=, <=, >, <, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// The leftmost operator splits the clause; at equal positions the
	// longer one wins, so "len>=3" is >= and not >.
	operators := []string{"!~", ">=", "<=", "!=", "~", "=", ">", "<", "^", "$"}

	op, idx := "", -1
	for _, candidate := range operators {
		i := strings.Index(clause, candidate)
		if i <= 0 {
			continue
		}
		if idx < 0 || i < idx || (i == idx && len(candidate) > len(op)) {
			op, idx = candidate, i
		}
	}

	if idx < 0 {
		return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, >, <, ^, $)", clause)
	}

	field := strings.ToLower(strings.TrimSpace(clause[:idx]))
	value := strings.TrimSpace(clause[idx+len(op):])
	if alias, ok := fieldAliases[field]; ok {
		field = alias
	}

	if field == "" || value == "" {
		return nil, fmt.Errorf("invalid where clause: %s", clause)
	}
	if !numericFields[field] && field != "verdict" && field != "text" {
		return nil, fmt.Errorf("unknown field in where clause '%s' (use op, channel, dir, len, sec, index, offset, verdict, text)", clause)
	}

	wc := &WhereClause{
		Field:    field,
		Operator: op,
		Value:    value,
	}

	switch op {
	case "~", "!~":
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
		}
		wc.regex = re
	case ">=", "<=", ">", "<":
		if !numericFields[field] {
			return nil, fmt.Errorf("operator %s needs a numeric field in where clause '%s'", op, clause)
		}
	}

	if numericFields[field] && wc.regex == nil {
		n, err := parseNumber(field, value)
		if err != nil {
			return nil, fmt.Errorf("invalid value in where clause '%s': %w", clause, err)
		}
		wc.number = n
		wc.numeric = true
	}
	return wc, nil
}

// parseNumber accepts op and direction names as well as integers.
func parseNumber(field, value string) (int64, error) {
	switch field {
	case "op":
		op, err := ttylog.ParseOp(strings.ToLower(value))
		return int64(op), err
	case "dir":
		switch strings.ToLower(value) {
		case "input":
			return int64(ttylog.DirInput), nil
		case "output":
			return int64(ttylog.DirOutput), nil
		case "interact":
			return int64(ttylog.DirInteract), nil
		}
	}
	return strconv.ParseInt(value, 10, 64)
}

// Match checks if a frame record matches this where clause
func (wc *WhereClause) Match(rec *domain.FrameRecord) bool {
	if wc.numeric {
		return wc.compareNumber(wc.numberValue(rec))
	}

	fieldValue := wc.stringValue(rec)

	switch wc.Operator {
	case "=":
		return strings.EqualFold(fieldValue, wc.Value)
	case "!=":
		return !strings.EqualFold(fieldValue, wc.Value)
	case "~": // Contains (regex)
		return wc.regex.MatchString(fieldValue)
	case "!~": // Not contains (regex)
		return !wc.regex.MatchString(fieldValue)
	case "^": // Starts with
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$": // Ends with
		return strings.HasSuffix(fieldValue, wc.Value)
	}

	return false
}

func (wc *WhereClause) compareNumber(v int64) bool {
	switch wc.Operator {
	case "=":
		return v == wc.number
	case "!=":
		return v != wc.number
	case ">=":
		return v >= wc.number
	case "<=":
		return v <= wc.number
	case ">":
		return v > wc.number
	case "<":
		return v < wc.number
	case "^":
		return strings.HasPrefix(strconv.FormatInt(v, 10), wc.Value)
	case "$":
		return strings.HasSuffix(strconv.FormatInt(v, 10), wc.Value)
	}
	return false
}

func (wc *WhereClause) numberValue(rec *domain.FrameRecord) int64 {
	switch wc.Field {
	case "op":
		return int64(rec.OpCode)
	case "channel":
		return int64(rec.Channel)
	case "dir":
		return int64(rec.Direction)
	case "len":
		return int64(rec.Length)
	case "sec":
		return int64(rec.Sec)
	case "index":
		return int64(rec.Index)
	case "offset":
		return int64(rec.Offset)
	}
	return 0
}

func (wc *WhereClause) stringValue(rec *domain.FrameRecord) string {
	switch wc.Field {
	case "verdict":
		return rec.Verdict
	case "text":
		return rec.Preview
	case "op":
		return rec.Op
	}
	return strconv.FormatInt(wc.numberValue(rec), 10)
}

// WhereFilter is a filter that applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from multiple where clause strings
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the record matches ALL where clauses (AND logic)
func (f *WhereFilter) Match(rec *domain.FrameRecord) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.clauses {
		if !clause.Match(rec) {
			return false
		}
	}
	return true
}
