package variable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGetOverwritesByName(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(Variable{Name: "sales", Description: "v1", ActualData: 1})
	s.Put(Variable{Name: "sales", Description: "v2", ActualData: 2})
	v, ok := s.Get("sales")
	require.True(t, ok)
	assert.Equal(t, "v2", v.Description)
	assert.Equal(t, 2, v.ActualData)
}

func TestStoreSummariesHideActualData(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(Variable{
		Name:        "sales",
		Description: "quarterly sales",
		ActualData:  map[string]any{"secret": "data"},
		Schema: map[string]FieldSchema{
			"revenue": {DataType: "number"},
		},
	})
	summaries := s.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "sales", summaries[0].Name)
	assert.Equal(t, "quarterly sales", summaries[0].Description)
	assert.Equal(t, []string{"revenue"}, summaries[0].SchemaKeys)
}

func TestStoreResetClearsEverything(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(Variable{Name: "a"})
	s.Put(Variable{Name: "b"})
	s.Reset()
	assert.Empty(t, s.Names())
}

func TestAnalysisStoreIsolatedFromVariableStore(t *testing.T) {
	t.Parallel()
	as := NewAnalysisStore()
	as.Put(Column("revenue", []any{10.0, 20.0}))
	v, ok := as.Get("revenue")
	require.True(t, ok)
	assert.Equal(t, AnalysisColumn, v.Kind)
	assert.Equal(t, []any{10.0, 20.0}, v.Column)
}
