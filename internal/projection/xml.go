package projection

import (
	"encoding/xml"
	"strings"
	"unicode"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
)

// xmlEncoder renders event properties as nested elements for the
// Properties column.
type xmlEncoder struct {
	opts    column.PropertiesOptions
	exclude map[string]struct{}
}

func (x xmlEncoder) encode(props []logevent.Property) string {
	var sb strings.Builder
	sb.WriteString("<" + x.opts.RootElementName + ">")
	for _, p := range props {
		if _, skip := x.exclude[p.Name]; skip {
			continue
		}
		if x.opts.Filter != nil && !x.opts.Filter(p.Name) {
			continue
		}
		x.writeProperty(&sb, p)
	}
	sb.WriteString("</" + x.opts.RootElementName + ">")
	return sb.String()
}

// writeProperty writes <property key='k'>v</property>, or <k>v</k> when
// keys are used as element names.
func (x xmlEncoder) writeProperty(sb *strings.Builder, p logevent.Property) {
	body := x.value(p.Value)
	if body == "" && x.opts.OmitElementIfEmpty {
		return
	}
	if x.opts.UsePropertyKeyAsElementName {
		name := elementName(p.Name)
		sb.WriteString("<" + name + ">" + body + "</" + name + ">")
		return
	}
	el := x.opts.PropertyElementName
	sb.WriteString("<" + el + " key='" + escape(p.Name) + "'>" + body + "</" + el + ">")
}

func (x xmlEncoder) value(v logevent.Value) string {
	var sb strings.Builder
	switch c := v.(type) {
	case nil:
		return ""
	case logevent.Scalar:
		return escape(c.String())
	case logevent.Sequence:
		for _, el := range c.Elements {
			body := x.value(el)
			if body == "" && x.opts.OmitElementIfEmpty {
				continue
			}
			sb.WriteString("<" + x.opts.ItemElementName + ">" + body + "</" + x.opts.ItemElementName + ">")
		}
		return x.container(x.opts.SequenceElementName, "", sb.String(), x.opts.OmitSequenceContainerElement)
	case logevent.Structure:
		for _, p := range c.Properties {
			x.writeProperty(&sb, p)
		}
		attr := ""
		if c.TypeTag != "" {
			attr = " type='" + escape(c.TypeTag) + "'"
		}
		return x.container(x.opts.StructureElementName, attr, sb.String(), x.opts.OmitStructureContainerElement)
	case logevent.Dictionary:
		for _, e := range c.Entries {
			body := x.value(e.Value)
			if body == "" && x.opts.OmitElementIfEmpty {
				continue
			}
			it := x.opts.ItemElementName
			sb.WriteString("<" + it + " key='" + escape(e.Key.String()) + "'>" + body + "</" + it + ">")
		}
		return x.container(x.opts.DictionaryElementName, "", sb.String(), x.opts.OmitDictionaryContainerElement)
	}
	return ""
}

func (x xmlEncoder) container(name, attr, body string, omit bool) string {
	if omit {
		return body
	}
	if body == "" && x.opts.OmitElementIfEmpty {
		return ""
	}
	return "<" + name + attr + ">" + body + "</" + name + ">"
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

// elementName turns a property key into a valid XML element name.
func elementName(key string) string {
	var sb strings.Builder
	for i, r := range key {
		valid := r == '_' || unicode.IsLetter(r) ||
			(i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)))
		if !valid {
			if i == 0 && (unicode.IsDigit(r) || r == '-' || r == '.') {
				sb.WriteByte('_')
				sb.WriteRune(r)
				continue
			}
			r = '_'
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
