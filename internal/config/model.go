package config

import (
	"fmt"
	"strings"
	"time"

	"sqlsink/internal/column"
	"sqlsink/internal/sink"
	"sqlsink/internal/sqltype"
)

// Model builds the column model. The first invalid setting stops the build
// and is returned as a *column.ConfigError or a wrapped parse error.
func (c *Config) Model() (*column.Model, error) {
	cols := c.Columns

	store, err := parseFields("columns.store", cols.Store)
	if err != nil {
		return nil, err
	}
	b, err := column.NewBuilder(store...)
	if err != nil {
		return nil, err
	}
	remove, err := parseFields("columns.remove", cols.Remove)
	if err != nil {
		return nil, err
	}
	for _, f := range remove {
		if err := b.RemoveStandard(f); err != nil {
			return nil, err
		}
	}
	add, err := parseFields("columns.add", cols.Add)
	if err != nil {
		return nil, err
	}
	for _, f := range add {
		if err := b.AddStandard(f); err != nil {
			return nil, err
		}
	}

	type standard struct {
		field column.StandardField
		col   *Column
		opts  column.FieldOptions
	}
	var std []standard
	if cols.ID != nil {
		std = append(std, standard{column.ID, cols.ID, nil})
	}
	if cols.Message != nil {
		std = append(std, standard{column.Message, cols.Message, nil})
	}
	if cols.MessageTemplate != nil {
		std = append(std, standard{column.MessageTemplate, cols.MessageTemplate, nil})
	}
	if cols.Level != nil {
		std = append(std, standard{column.Level, &cols.Level.Column, column.LevelOptions{StoreAsEnum: cols.Level.StoreAsEnum}})
	}
	if cols.TimeStamp != nil {
		std = append(std, standard{column.TimeStamp, &cols.TimeStamp.Column, column.TimeStampOptions{ConvertToUTC: cols.TimeStamp.ConvertToUTC}})
	}
	if cols.Exception != nil {
		std = append(std, standard{column.Exception, cols.Exception, nil})
	}
	if cols.Properties != nil {
		std = append(std, standard{column.Properties, &cols.Properties.Column, cols.Properties.options()})
	}
	if cols.LogEvent != nil {
		std = append(std, standard{column.LogEvent, &cols.LogEvent.Column, column.LogEventOptions{
			ExcludeAdditionalProperties: cols.LogEvent.ExcludeAdditionalProperties,
			ExcludeStandardColumns:      cols.LogEvent.ExcludeStandardColumns,
		}})
	}
	for _, s := range std {
		spec, err := s.col.apply(b.Standard(s.field))
		if err != nil {
			return nil, err
		}
		if s.opts != nil {
			spec.Options = s.opts
		}
		if lo, ok := s.opts.(column.LevelOptions); ok && s.col.DataType == "" {
			// Let the builder pick TINYINT or NVARCHAR for the level.
			spec.Type, spec.Length = 0, 0
			if !lo.StoreAsEnum && s.col.DataLength != nil {
				spec.Type, spec.Length = sqltype.NVarChar, int(*s.col.DataLength)
			}
		}
		if err := b.ConfigureStandard(spec); err != nil {
			return nil, err
		}
	}

	for i, a := range cols.Additional {
		spec, err := a.apply(column.ColumnSpec{AllowNull: true})
		if err != nil {
			return nil, fmt.Errorf("columns.additional[%d]: %w", i, err)
		}
		spec.PropertyName = strings.TrimSpace(a.PropertyName)
		if a.ResolveHierarchicalPropertyName != nil && !*a.ResolveHierarchicalPropertyName {
			spec.LiteralPropertyName = true
		}
		if err := b.AddAdditional(spec); err != nil {
			return nil, err
		}
	}

	if err := b.SetColumnstore(cols.ClusteredColumnstoreIndex); err != nil {
		return nil, err
	}
	if err := b.SetPrimaryKey(cols.PrimaryKey); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// apply overlays the set fields of c onto spec.
func (c *Column) apply(spec column.ColumnSpec) (column.ColumnSpec, error) {
	if name := strings.TrimSpace(c.ColumnName); name != "" {
		spec.Name = name
	}
	if c.DataType != "" {
		t, ok := sqltype.TryParse(c.DataType)
		if !ok {
			return spec, &column.ConfigError{Column: spec.Name, Msg: fmt.Sprintf("unknown data type %q", c.DataType)}
		}
		if t != spec.Type {
			spec.Type = t
			spec.Length = 0
			if sqltype.RequiresLength(t) && sqltype.AllowsMax(t) {
				spec.Length = column.MaxLength
			}
		}
	}
	if c.DataLength != nil {
		spec.Length = int(*c.DataLength)
	}
	if c.Precision != nil {
		spec.Precision = *c.Precision
	}
	if c.Scale != nil {
		spec.Scale = *c.Scale
	}
	if c.AllowNull != nil {
		spec.AllowNull = *c.AllowNull
	}
	if c.NonClusteredIndex {
		spec.Indexed = true
	}
	return spec, nil
}

func (p *PropertiesColumn) options() column.PropertiesOptions {
	o := column.PropertiesOptions{
		RootElementName:                p.RootElementName,
		PropertyElementName:            p.PropertyElementName,
		ItemElementName:                p.ItemElementName,
		DictionaryElementName:          p.DictionaryElementName,
		SequenceElementName:            p.SequenceElementName,
		StructureElementName:           p.StructureElementName,
		OmitDictionaryContainerElement: p.OmitDictionaryContainerElement,
		OmitSequenceContainerElement:   p.OmitSequenceContainerElement,
		OmitStructureContainerElement:  p.OmitStructureContainerElement,
		OmitElementIfEmpty:             p.OmitElementIfEmpty,
		UsePropertyKeyAsElementName:    p.UsePropertyKeyAsElementName,
		ExcludeAdditionalProperties:    p.ExcludeAdditionalProperties,
	}
	if len(p.ExcludeProperties) > 0 {
		excluded := make(map[string]struct{}, len(p.ExcludeProperties))
		for _, n := range p.ExcludeProperties {
			excluded[n] = struct{}{}
		}
		o.Filter = func(name string) bool {
			_, skip := excluded[name]
			return !skip
		}
	}
	return o.WithDefaults()
}

func parseFields(path string, names []string) ([]column.StandardField, error) {
	out := make([]column.StandardField, 0, len(names))
	for _, n := range names {
		f, ok := column.ParseStandardField(n)
		if !ok {
			return nil, fmt.Errorf("%s: unknown standard column %q", path, n)
		}
		out = append(out, f)
	}
	return out, nil
}

// SinkOptions maps the sink section onto sink.Options. Unset optionals stay
// zero so the sink applies its defaults.
func (c *Config) SinkOptions() sink.Options {
	s := c.Sink
	o := sink.Options{
		Schema:          strings.TrimSpace(s.SchemaName),
		Table:           strings.TrimSpace(s.TableName),
		AutoCreateTable: s.AutoCreateTable,
		Strategy:        strings.ToLower(strings.TrimSpace(s.Strategy)),
		DisableTriggers: s.DisableTriggers,
	}
	if s.BatchSizeLimit != nil {
		o.BatchSizeLimit = *s.BatchSizeLimit
	}
	if s.QueueLimit != nil {
		o.QueueLimit = *s.QueueLimit
	}
	o.BatchPeriod = durationOr(s.BatchPeriod, 0)
	o.RetentionPeriod = durationOr(s.RetentionPeriod, 0)
	o.PruningInterval = durationOr(s.PruningInterval, 0)
	o.DrainTimeout = durationOr(s.DrainTimeout, 0)
	return o
}

func durationOr(d *Duration, def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return d.Duration
}
