package metaobject_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

func Test_PropertyTokenizer_ParsesNestedIndexedPath(t *testing.T) {
	// act
	prop, err := metaobject.NewPropertyTokenizer("delegate.items[2].name")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "delegate", prop.Name())
	assert.False(t, prop.HasIndex())
	assert.Equal(t, "delegate", prop.IndexedName())
	assert.Equal(t, "items[2].name", prop.Children())
	assert.True(t, prop.HasNext())

	items := prop.Next()
	assert.Equal(t, "items", items.Name())
	assert.Equal(t, "2", items.Index())
	assert.Equal(t, "items[2]", items.IndexedName())
	assert.Equal(t, "name", items.Children())

	name := items.Next()
	assert.Equal(t, "name", name.Name())
	assert.False(t, name.HasNext())
	assert.Empty(t, name.Children())
}

func Test_PropertyTokenizer_KeepsRawIndexToken(t *testing.T) {
	// act
	prop, err := metaobject.NewPropertyTokenizer("attrs[color]")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "attrs", prop.Name())
	assert.Equal(t, "color", prop.Index())
	assert.False(t, prop.HasNext())
}

func Test_PropertyTokenizer_DotInsideIndexIsPartOfTheKey(t *testing.T) {
	// act
	prop, err := metaobject.NewPropertyTokenizer("hosts[db.local].port")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "db.local", prop.Index())
	assert.Equal(t, "port", prop.Children())
}

func Test_PropertyTokenizer_Head_DropsRemainder(t *testing.T) {
	// arrange
	prop, err := metaobject.NewPropertyTokenizer("items[1].name")
	require.NoError(t, err)

	// act
	head := prop.Head()

	// assert
	assert.Equal(t, "items[1]", head.IndexedName())
	assert.False(t, head.HasNext())
	assert.Equal(t, "items[1].name", prop.String())
}

func Test_PropertyTokenizer_MalformedPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "empty segment", path: "a..b"},
		{name: "leading dot", path: ".a"},
		{name: "trailing dot", path: "a."},
		{name: "index without name", path: "[1]"},
		{name: "unterminated bracket", path: "a[1"},
		{name: "empty index", path: "a[]"},
		{name: "characters after index", path: "a[1]b"},
		{name: "nested brackets", path: "a[[1]]"},
		{name: "unbalanced closing bracket", path: "a]"},
		{name: "two indices", path: "a[1][2]"},
		{name: "malformed child segment", path: "a.b[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			_, err := metaobject.NewPropertyTokenizer(tt.path)

			// assert
			assert.ErrorIs(t, err, metaobject.ErrMalformedPath)
		})
	}
}
