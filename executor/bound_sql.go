package executor

import (
	"slices"
	"strings"

	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

// ParameterMapping describes one #{} parameter of a statement.
type ParameterMapping struct {
	// Property is the path of the value inside the parameter object, e.g. "author.name".
	Property string
	// TypeHandler names a conversion applied before binding. "json" marshals the value.
	TypeHandler string
}

// BoundSQL is the SQL of one execution together with its parameter mappings.
// The SQL text is private; interceptors rewrite it through path navigation after peeling the handler.
type BoundSQL struct {
	sql                  string
	parameterMappings    []ParameterMapping
	parameterObject      any
	additionalParameters map[string]any
	metaParameters       *metaobject.MetaObject
}

// NewBoundSQL creates a BoundSQL for sql with its mappings and the parameter object of the call.
func NewBoundSQL(sql string, mappings []ParameterMapping, parameterObject any) *BoundSQL {
	additional := make(map[string]any)
	meta, _ := metaobject.ForObject(&additional)

	return &BoundSQL{
		sql:                  sql,
		parameterMappings:    slices.Clone(mappings),
		parameterObject:      parameterObject,
		additionalParameters: additional,
		metaParameters:       meta,
	}
}

// SQL returns the SQL text to execute.
func (b *BoundSQL) SQL() string {
	return b.sql
}

// ParameterMappings returns the parameter mappings in placeholder order.
func (b *BoundSQL) ParameterMappings() []ParameterMapping {
	return slices.Clone(b.parameterMappings)
}

// ParameterObject returns the parameter object the SQL was bound for.
func (b *BoundSQL) ParameterObject() any {
	return b.parameterObject
}

// SetAdditionalParameter stores a value that takes precedence over the parameter object.
// Nested paths like "item.name" create intermediate maps.
func (b *BoundSQL) SetAdditionalParameter(path string, value any) error {
	return b.metaParameters.SetValue(path, value)
}

// HasAdditionalParameter reports whether the first segment of path was set as an additional parameter.
func (b *BoundSQL) HasAdditionalParameter(path string) bool {
	prop, err := metaobject.NewPropertyTokenizer(path)
	if err != nil {
		return false
	}

	_, ok := b.additionalParameters[prop.Name()]

	return ok
}

// AdditionalParameter resolves path against the additional parameters.
func (b *BoundSQL) AdditionalParameter(path string) (any, error) {
	return b.metaParameters.GetValue(path)
}

// sqlSummary shortens sql for log attributes.
func sqlSummary(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > 200 {
		return sql[:200] + "..."
	}

	return sql
}
