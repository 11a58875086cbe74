package metaobject

import (
	"errors"
	"fmt"
	"strings"
)

// PropertyTokenizer is the parsed head segment of a property path plus the parsed remainder.
//
// "items[2].name" yields Name "items", Index "2", IndexedName "items[2]" and Children "name".
// The index is kept as the raw token; whether it addresses a slice position or a map key
// is decided when the path is resolved against an actual value.
type PropertyTokenizer struct {
	name        string
	index       string
	indexedName string
	children    string
	next        *PropertyTokenizer
}

// NewPropertyTokenizer parses the complete path and returns its head segment.
// Any syntax error anywhere in the path is reported as ErrMalformedPath.
func NewPropertyTokenizer(path string) (PropertyTokenizer, error) {
	if path == "" {
		return PropertyTokenizer{}, malformed(path, "empty path")
	}

	head, children, hasChildren, err := splitHead(path)
	if err != nil {
		return PropertyTokenizer{}, err
	}

	name, index, err := parseSegment(path, head)
	if err != nil {
		return PropertyTokenizer{}, err
	}

	prop := PropertyTokenizer{
		name:        name,
		index:       index,
		indexedName: head,
		children:    children,
	}

	if hasChildren {
		if children == "" {
			return PropertyTokenizer{}, malformed(path, "trailing dot")
		}

		next, err := NewPropertyTokenizer(children)
		if err != nil {
			return PropertyTokenizer{}, err
		}

		prop.next = &next
	}

	return prop, nil
}

// Name returns the segment name without its index.
func (p PropertyTokenizer) Name() string {
	return p.name
}

// Index returns the raw index token, or an empty string when the segment has none.
func (p PropertyTokenizer) Index() string {
	return p.index
}

// HasIndex reports whether the segment carries a bracketed index.
func (p PropertyTokenizer) HasIndex() bool {
	return p.index != ""
}

// IndexedName returns the segment name including its index, e.g. "items[2]".
func (p PropertyTokenizer) IndexedName() string {
	return p.indexedName
}

// Children returns the unparsed remainder of the path after the head segment.
func (p PropertyTokenizer) Children() string {
	return p.children
}

// HasNext reports whether more segments follow the head segment.
func (p PropertyTokenizer) HasNext() bool {
	return p.next != nil
}

// Next returns the tokenizer for the remainder. It returns the zero value if there is none.
func (p PropertyTokenizer) Next() PropertyTokenizer {
	if p.next == nil {
		return PropertyTokenizer{}
	}

	return *p.next
}

// Head returns the head segment alone, without any remainder.
func (p PropertyTokenizer) Head() PropertyTokenizer {
	return PropertyTokenizer{
		name:        p.name,
		index:       p.index,
		indexedName: p.indexedName,
	}
}

// String returns the full path this tokenizer was parsed from.
func (p PropertyTokenizer) String() string {
	if p.children == "" {
		return p.indexedName
	}

	return p.indexedName + "." + p.children
}

// splitHead splits at the first dot that is not inside brackets.
func splitHead(path string) (head string, children string, hasChildren bool, err error) {
	inBrackets := false

	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			if inBrackets {
				return "", "", false, malformed(path, "nested '['")
			}
			inBrackets = true

		case ']':
			if !inBrackets {
				return "", "", false, malformed(path, "unbalanced ']'")
			}
			inBrackets = false

		case '.':
			if !inBrackets {
				return path[:i], path[i+1:], true, nil
			}
		}
	}

	if inBrackets {
		return "", "", false, malformed(path, "unterminated '['")
	}

	return path, "", false, nil
}

func parseSegment(path string, segment string) (name string, index string, err error) {
	if segment == "" {
		return "", "", malformed(path, "empty segment")
	}

	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, "", nil
	}

	if open == 0 {
		return "", "", malformed(path, fmt.Sprintf("segment %q has an index but no name", segment))
	}

	if segment[len(segment)-1] != ']' {
		return "", "", malformed(path, fmt.Sprintf("segment %q has characters after its index", segment))
	}

	index = segment[open+1 : len(segment)-1]
	if index == "" {
		return "", "", malformed(path, fmt.Sprintf("segment %q has an empty index", segment))
	}

	if strings.ContainsAny(index, "[]") {
		return "", "", malformed(path, fmt.Sprintf("segment %q has more than one index", segment))
	}

	return segment[:open], index, nil
}

func malformed(path string, reason string) error {
	return errors.Join(ErrMalformedPath, fmt.Errorf("path %q: %s", path, reason))
}
