package schema

import (
	"path"
	"strings"
)

// Field is one column of a target schema.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Schema is a canonical target table of the destination system.
type Schema struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
	// Key names the field that identifies a record; imports use it to skip
	// rows that were already loaded.
	Key string `json:"key,omitempty"`
	// Hints are file name fragments that point at this schema.
	Hints []string `json:"hints,omitempty"`
}

// FieldNames returns the field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of the fields an import cannot skip.
func (s Schema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasField reports whether name is one of the schema's fields.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Catalog is an ordered, read-only set of target schemas.
type Catalog struct {
	schemas []Schema
	byName  map[string]int
}

// NewCatalog builds a catalog. Later schemas with a duplicate name replace
// earlier ones.
func NewCatalog(schemas ...Schema) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(schemas))}
	for _, s := range schemas {
		if i, ok := c.byName[s.Name]; ok {
			c.schemas[i] = s
			continue
		}
		c.byName[s.Name] = len(c.schemas)
		c.schemas = append(c.schemas, s)
	}
	return c
}

// Schemas returns a copy of the schemas in catalog order.
func (c *Catalog) Schemas() []Schema {
	out := make([]Schema, len(c.schemas))
	copy(out, c.schemas)
	return out
}

// Get looks a schema up by name.
func (c *Catalog) Get(name string) (Schema, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Schema{}, false
	}
	return c.schemas[i], true
}

// Guess picks the schema a detected file most likely feeds.
//
// A schema hint found in the file's base name wins. Otherwise the schema
// for which SuggestMapping matches the most fields is chosen, ties going to
// the earlier schema. It returns false when nothing matches at all.
func (c *Catalog) Guess(fileName string, columns []string) (Schema, bool) {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = NormalizeField(strings.TrimSuffix(base, path.Ext(base)))

	if base != "" {
		for _, s := range c.schemas {
			for _, hint := range s.Hints {
				if h := NormalizeField(hint); h != "" && strings.Contains(base, h) {
					return s, true
				}
			}
		}
	}

	best, bestScore := -1, 0
	for i, s := range c.schemas {
		score := len(SuggestMapping(columns, s.FieldNames()))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Schema{}, false
	}
	return c.schemas[best], true
}

// DefaultCatalog returns the target tables of the destination ERP.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Schema{
			Name:  "products",
			Label: "Productos",
			Key:   "code",
			Hints: []string{"producto", "articulo", "inventario", "product", "item"},
			Fields: []Field{
				{Name: "code", Label: "Código", Required: true},
				{Name: "name", Label: "Nombre", Required: true},
				{Name: "description", Label: "Descripción"},
				{Name: "category", Label: "Categoría"},
				{Name: "unit", Label: "Unidad"},
				{Name: "barcode", Label: "Código de barras"},
				{Name: "cost", Label: "Costo"},
				{Name: "price", Label: "Precio", Required: true},
				{Name: "tax_rate", Label: "Impuesto"},
				{Name: "stock", Label: "Existencia"},
			},
		},
		Schema{
			Name:  "warehouses",
			Label: "Almacenes",
			Key:   "code",
			Hints: []string{"almacen", "deposito", "bodega", "warehouse"},
			Fields: []Field{
				{Name: "code", Label: "Código", Required: true},
				{Name: "name", Label: "Nombre", Required: true},
				{Name: "location", Label: "Ubicación"},
				{Name: "manager", Label: "Responsable"},
			},
		},
		Schema{
			Name:  "customers",
			Label: "Clientes",
			Key:   "tax_id",
			Hints: []string{"cliente", "customer"},
			Fields: []Field{
				{Name: "tax_id", Label: "RIF / Cédula", Required: true},
				{Name: "name", Label: "Razón social", Required: true},
				{Name: "address", Label: "Dirección"},
				{Name: "phone", Label: "Teléfono"},
				{Name: "email", Label: "Correo"},
				{Name: "credit_limit", Label: "Límite de crédito"},
				{Name: "balance", Label: "Saldo"},
			},
		},
		Schema{
			Name:  "suppliers",
			Label: "Proveedores",
			Key:   "tax_id",
			Hints: []string{"proveedor", "supplier", "vendor"},
			Fields: []Field{
				{Name: "tax_id", Label: "RIF", Required: true},
				{Name: "name", Label: "Razón social", Required: true},
				{Name: "address", Label: "Dirección"},
				{Name: "phone", Label: "Teléfono"},
				{Name: "email", Label: "Correo"},
				{Name: "contact", Label: "Contacto"},
				{Name: "balance", Label: "Saldo"},
			},
		},
		Schema{
			Name:  "employees",
			Label: "Empleados",
			Key:   "national_id",
			Hints: []string{"empleado", "trabajador", "nomina", "personal", "employee"},
			Fields: []Field{
				{Name: "national_id", Label: "Cédula", Required: true},
				{Name: "first_name", Label: "Nombres", Required: true},
				{Name: "last_name", Label: "Apellidos", Required: true},
				{Name: "position", Label: "Cargo"},
				{Name: "department", Label: "Departamento"},
				{Name: "hire_date", Label: "Fecha de ingreso"},
				{Name: "base_salary", Label: "Sueldo base"},
				{Name: "email", Label: "Correo"},
				{Name: "phone", Label: "Teléfono"},
			},
		},
		Schema{
			Name:  "accounts",
			Label: "Plan de cuentas",
			Key:   "account_code",
			Hints: []string{"cuenta", "plancontable", "account", "ledger"},
			Fields: []Field{
				{Name: "account_code", Label: "Código contable", Required: true},
				{Name: "account_name", Label: "Denominación", Required: true},
				{Name: "account_type", Label: "Tipo"},
				{Name: "parent_code", Label: "Cuenta padre"},
				{Name: "balance", Label: "Saldo"},
			},
		},
	)
}
