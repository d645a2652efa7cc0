package column

import (
	"strings"

	"sqlsink/internal/sqltype"
)

// Builder assembles a Model. Every method validates the model as changed
// and leaves the builder untouched when it returns an error.
type Builder struct {
	store       []StandardField
	standard    map[StandardField]ColumnSpec
	additional  []ColumnSpec
	primaryKey  string
	columnstore bool
}

// NewBuilder starts a model storing the given standard fields, in order.
// With no arguments DefaultStore is used.
func NewBuilder(store ...StandardField) (*Builder, error) {
	if len(store) == 0 {
		store = DefaultStore
	}
	b := &Builder{standard: make(map[StandardField]ColumnSpec, len(AllStandardFields))}
	for _, f := range AllStandardFields {
		b.standard[f] = DefaultSpec(f)
	}
	for _, f := range store {
		if err := b.AddStandard(f); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Standard returns the current definition of a standard field's column,
// whether or not the field is stored.
func (b *Builder) Standard(f StandardField) ColumnSpec {
	return b.standard[f]
}

// Stores reports whether f is part of the table.
func (b *Builder) Stores(f StandardField) bool {
	return indexOf(b.store, f) >= 0
}

// AddStandard appends f to the stored fields. Adding a stored field is a no-op.
func (b *Builder) AddStandard(f StandardField) error {
	if !f.Valid() {
		return configErr("", "unknown standard field %d", int(f))
	}
	if b.Stores(f) {
		return nil
	}
	spec := b.standard[f]
	if err := b.checkName(spec.Name, spec); err != nil {
		return err
	}
	if err := b.checkColumnstore(spec); err != nil {
		return err
	}
	b.store = append(b.store, f)
	return nil
}

// RemoveStandard drops f from the stored fields. The primary key column
// cannot be removed.
func (b *Builder) RemoveStandard(f StandardField) error {
	i := indexOf(b.store, f)
	if i < 0 {
		return nil
	}
	spec := b.standard[f]
	if b.isPrimaryKey(spec.Name) {
		return configErr(spec.Name, "the primary key column cannot be removed")
	}
	b.store = append(b.store[:i:i], b.store[i+1:]...)
	return nil
}

// ConfigureStandard replaces the definition of spec.Field's column. An
// empty Name falls back to the field name and a zero Type to the field's
// default type; everything else is taken as given, so callers usually start
// from Standard(f).
func (b *Builder) ConfigureStandard(spec ColumnSpec) error {
	if !spec.Field.Valid() {
		return configErr(spec.Name, "ConfigureStandard requires a standard field")
	}
	def := DefaultSpec(spec.Field)
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = def.Name
	}
	if spec.Options == nil {
		spec.Options = def.Options
	}
	if spec.Type == 0 {
		spec.Type = def.Type
		if spec.Field == Level {
			if opts, _ := spec.Options.(LevelOptions); opts.StoreAsEnum {
				spec.Type = sqltype.TinyInt
				spec.Length = 0
			} else if spec.Length == 0 {
				spec.Length = def.Length
			}
		} else if spec.Length == 0 {
			spec.Length = def.Length
		}
	}
	if err := validate(spec); err != nil {
		return err
	}

	old := b.standard[spec.Field]
	if b.Stores(spec.Field) {
		if err := b.checkName(spec.Name, old); err != nil {
			return err
		}
		if err := b.checkColumnstore(spec); err != nil {
			return err
		}
		if b.isPrimaryKey(old.Name) {
			if err := checkPrimaryKey(spec); err != nil {
				return err
			}
		}
	}

	if b.isPrimaryKey(old.Name) {
		b.primaryKey = spec.Name
	}
	b.standard[spec.Field] = spec
	return nil
}

// AddAdditional appends a user-defined column. A zero Type means
// NVARCHAR(MAX) and an empty PropertyName means the column name.
func (b *Builder) AddAdditional(spec ColumnSpec) error {
	if spec.Field != 0 {
		return configErr(spec.Name, "standard fields are configured with ConfigureStandard")
	}
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Type == 0 {
		spec.Type = sqltype.NVarChar
		if spec.Length == 0 {
			spec.Length = MaxLength
		}
	}
	if spec.PropertyName == "" {
		spec.PropertyName = spec.Name
	}
	if err := validate(spec); err != nil {
		return err
	}
	if err := b.checkName(spec.Name, ColumnSpec{}); err != nil {
		return err
	}
	if err := b.checkColumnstore(spec); err != nil {
		return err
	}
	b.additional = append(b.additional, spec)
	return nil
}

// SetPrimaryKey designates the named column as the clustered primary key.
// An empty name clears the designation. A model has at most one primary key
// and cannot combine it with a clustered columnstore index.
func (b *Builder) SetPrimaryKey(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		b.primaryKey = ""
		return nil
	}
	if b.columnstore {
		return configErr(name, "primary key and clustered columnstore index are mutually exclusive")
	}
	if b.primaryKey != "" && !strings.EqualFold(b.primaryKey, name) {
		return configErr(name, "primary key is already set to %q", b.primaryKey)
	}
	spec, ok := b.column(name)
	if !ok {
		return configErr(name, "primary key refers to an unknown column")
	}
	if err := checkPrimaryKey(spec); err != nil {
		return err
	}
	b.primaryKey = spec.Name
	return nil
}

// SetColumnstore toggles the clustered columnstore index. It cannot be
// enabled together with a primary key or with incompatible column types.
func (b *Builder) SetColumnstore(on bool) error {
	if !on {
		b.columnstore = false
		return nil
	}
	if b.primaryKey != "" {
		return configErr(b.primaryKey, "primary key and clustered columnstore index are mutually exclusive")
	}
	for _, c := range b.columns() {
		if !sqltype.ColumnstoreCompatible(c.Type) {
			return configErr(c.Name, "type %s is not supported by a clustered columnstore index", c.Type)
		}
	}
	b.columnstore = true
	return nil
}

// Build returns an immutable snapshot of the model.
func (b *Builder) Build() *Model {
	cols := b.columns()
	m := &Model{
		columns:     cols,
		nStandard:   len(b.store),
		byField:     make(map[StandardField]int, len(b.store)),
		byName:      make(map[string]int, len(cols)),
		primaryKey:  b.primaryKey,
		columnstore: b.columnstore,
		options:     make(map[StandardField]ColumnSpec, len(b.standard)),
	}
	for i, c := range cols {
		if c.IsStandard() {
			m.byField[c.Field] = i
		}
		m.byName[strings.ToLower(c.Name)] = i
	}
	for f, spec := range b.standard {
		m.options[f] = spec
	}
	return m
}

// columns returns the stored columns in table order.
func (b *Builder) columns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(b.store)+len(b.additional))
	for _, f := range b.store {
		out = append(out, b.standard[f])
	}
	return append(out, b.additional...)
}

func (b *Builder) column(name string) (ColumnSpec, bool) {
	for _, c := range b.columns() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// checkName fails if name is taken by a stored column other than self.
func (b *Builder) checkName(name string, self ColumnSpec) error {
	for _, c := range b.columns() {
		if self.IsStandard() && c.Field == self.Field {
			continue
		}
		if strings.EqualFold(c.Name, name) {
			return configErr(name, "duplicate column name")
		}
	}
	return nil
}

func (b *Builder) checkColumnstore(c ColumnSpec) error {
	if b.columnstore && !sqltype.ColumnstoreCompatible(c.Type) {
		return configErr(c.Name, "type %s is not supported by a clustered columnstore index", c.Type)
	}
	return nil
}

func (b *Builder) isPrimaryKey(name string) bool {
	return b.primaryKey != "" && strings.EqualFold(b.primaryKey, name)
}

func checkPrimaryKey(c ColumnSpec) error {
	if c.AllowNull {
		return configErr(c.Name, "a primary key column must not allow nulls")
	}
	if c.Type == sqltype.Xml || c.Length == MaxLength {
		return configErr(c.Name, "%s cannot be a primary key", typeLabel(c))
	}
	return nil
}

func indexOf(fields []StandardField, f StandardField) int {
	for i, x := range fields {
		if x == f {
			return i
		}
	}
	return -1
}
