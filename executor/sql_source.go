package executor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	paramOpen         = "#{"
	paramClose        = "}"
	typeHandlerOption = "typeHandler"
)

// SQLSource produces the BoundSQL for one call of a mapped statement.
type SQLSource interface {
	BoundSQL(parameterObject any) (*BoundSQL, error)
}

// SQLSourceFunc adapts a function to the SQLSource interface, e.g. for SQL assembled per call.
type SQLSourceFunc func(parameterObject any) (*BoundSQL, error)

// BoundSQL calls f(parameterObject).
func (f SQLSourceFunc) BoundSQL(parameterObject any) (*BoundSQL, error) {
	return f(parameterObject)
}

// StaticSQLSource is SQL whose #{} parameters were parsed once into placeholders.
type StaticSQLSource struct {
	sql      string
	mappings []ParameterMapping
}

// NewStaticSQLSource parses the #{property} and #{property,typeHandler=json} parameters of sql
// and replaces them with placeholders in the given format.
func NewStaticSQLSource(sql string, format PlaceholderFormat) (*StaticSQLSource, error) {
	var b strings.Builder
	var mappings []ParameterMapping

	rest := sql
	for {
		start := strings.Index(rest, paramOpen)
		if start < 0 {
			b.WriteString(rest)
			break
		}

		end := strings.Index(rest[start:], paramClose)
		if end < 0 {
			return nil, errors.Join(ErrInvalidStatement, fmt.Errorf("unterminated parameter in %q", sql))
		}
		end += start

		mapping, err := parseParameter(rest[start+len(paramOpen) : end])
		if err != nil {
			return nil, errors.Join(ErrInvalidStatement, fmt.Errorf("%w in %q", err, sql))
		}

		mappings = append(mappings, mapping)
		b.WriteString(rest[:start])
		b.WriteString(placeholder(format, len(mappings)))
		rest = rest[end+len(paramClose):]
	}

	return &StaticSQLSource{sql: b.String(), mappings: mappings}, nil
}

// BoundSQL implements SQLSource.
func (s *StaticSQLSource) BoundSQL(parameterObject any) (*BoundSQL, error) {
	return NewBoundSQL(s.sql, s.mappings, parameterObject), nil
}

func parseParameter(content string) (ParameterMapping, error) {
	parts := strings.Split(content, ",")

	mapping := ParameterMapping{Property: strings.TrimSpace(parts[0])}
	if mapping.Property == "" {
		return ParameterMapping{}, errors.New("empty parameter name")
	}

	for _, option := range parts[1:] {
		key, value, ok := strings.Cut(option, "=")
		if !ok {
			return ParameterMapping{}, fmt.Errorf("parameter option %q is not key=value", strings.TrimSpace(option))
		}

		if strings.TrimSpace(key) == typeHandlerOption {
			mapping.TypeHandler = strings.TrimSpace(value)
		}
	}

	return mapping, nil
}

func placeholder(format PlaceholderFormat, position int) string {
	if format == PlaceholderDollar {
		return "$" + strconv.Itoa(position)
	}

	return "?"
}
