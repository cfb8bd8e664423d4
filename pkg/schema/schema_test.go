package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeField(t *testing.T) {
	cases := map[string]string{
		"Teléfono_Móvil":  "telefonomovil",
		"telefono movil":  "telefonomovil",
		"  E-Mail ":       "email",
		"AÑO":             "ano",
		"Código Postal 2": "codigopostal2",
		"#__--":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeField(in), in)
	}
}

func TestSuggestMapping(t *testing.T) {
	t.Run("unrelated names produce nothing", func(t *testing.T) {
		assert.Empty(t, SuggestMapping([]string{"SUELDO_MEN"}, []string{"base_salary"}))
	})

	t.Run("containment matches", func(t *testing.T) {
		got := SuggestMapping([]string{"email_address"}, []string{"email"})
		assert.Equal(t, map[string]string{"email": "email_address"}, got)
	})

	t.Run("accents and separators are ignored", func(t *testing.T) {
		got := SuggestMapping([]string{"TELÉFONO"}, []string{"telefono"})
		assert.Equal(t, map[string]string{"telefono": "TELÉFONO"}, got)
	})

	t.Run("first matching field takes the column", func(t *testing.T) {
		got := SuggestMapping([]string{"code"}, []string{"barcode", "code"})
		assert.Equal(t, map[string]string{"barcode": "code"}, got)
	})

	t.Run("symbol only columns never match", func(t *testing.T) {
		assert.Empty(t, SuggestMapping([]string{"#", "--"}, []string{"name", "code"}))
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Empty(t, SuggestMapping(nil, []string{"name"}))
		assert.Empty(t, SuggestMapping([]string{"name"}, nil))
	})
}

func TestSuggestMappingTraceConflicts(t *testing.T) {
	s := SuggestMappingTrace([]string{"nombre", "NOMBRE_COMPLETO", "rif"}, []string{"nombre", "rif"})

	assert.Equal(t, map[string]string{"nombre": "NOMBRE_COMPLETO", "rif": "rif"}, s.Mapping)
	require.Len(t, s.Conflicts, 1)
	assert.Equal(t, Conflict{Field: "nombre", Replaced: "nombre", Winner: "NOMBRE_COMPLETO"}, s.Conflicts[0])
}

func TestSuggestMappingValuesAreSourceColumns(t *testing.T) {
	columns := []string{"COD_ART", "DESCRIP", "PRECIO", "Nombre", "codigo"}
	fields := DefaultCatalog().Schemas()[0].FieldNames()

	got := SuggestMapping(columns, fields)
	for field, column := range got {
		assert.Contains(t, fields, field)
		assert.Contains(t, columns, column)
	}
}

func TestCatalogGet(t *testing.T) {
	c := DefaultCatalog()

	s, ok := c.Get("employees")
	require.True(t, ok)
	assert.True(t, s.HasField("base_salary"))
	assert.Contains(t, s.RequiredFields(), "national_id")
	assert.Equal(t, "national_id", s.Key)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestNewCatalogReplacesDuplicates(t *testing.T) {
	c := NewCatalog(
		Schema{Name: "a", Label: "first"},
		Schema{Name: "b"},
		Schema{Name: "a", Label: "second"},
	)
	require.Len(t, c.Schemas(), 2)
	s, _ := c.Get("a")
	assert.Equal(t, "second", s.Label)
	assert.Equal(t, "a", c.Schemas()[0].Name)
}

func TestCatalogGuess(t *testing.T) {
	c := DefaultCatalog()

	s, ok := c.Guess("DATA/CLIENTES.DBF", nil)
	require.True(t, ok)
	assert.Equal(t, "customers", s.Name)

	s, ok = c.Guess(`C:\sistema\Proveedores.xls`, nil)
	require.True(t, ok)
	assert.Equal(t, "suppliers", s.Name)

	s, ok = c.Guess("export.csv", []string{"account_type", "parent_code"})
	require.True(t, ok)
	assert.Equal(t, "accounts", s.Name)

	_, ok = c.Guess("x.csv", []string{"zzz"})
	assert.False(t, ok)
}
