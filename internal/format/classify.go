package format

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Kind classifies the shape of raw script output.
type Kind int

const (
	// KindMap is a structured map literal like {name: "x", count: 2}.
	KindMap Kind = iota
	// KindList is a structured list literal like [1, "two", 3].
	KindList
	// KindJSON is any other valid JSON document.
	KindJSON
	// KindText is opaque text.
	KindText
)

// OrderedMap is a map that remembers insertion order, so tabular renderings
// can follow the first row's key order.
type OrderedMap struct {
	Keys   []string
	Values map[string]interface{}
}

func newOrderedMap() *OrderedMap {
	return &OrderedMap{Values: make(map[string]interface{})}
}

func (m *OrderedMap) set(key string, value interface{}) {
	if _, exists := m.Values[key]; !exists {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = value
}

// MarshalJSON emits keys in their recorded order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(m.Values[k])
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// plain converts the ordered map (recursively) into ordinary maps, for
// renderers that do not care about key order.
func (m *OrderedMap) plain() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Keys))
	for _, k := range m.Keys {
		out[k] = plainValue(m.Values[k])
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *OrderedMap:
		return val.plain()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

// Classify detects the shape of raw output. The checking order is
// load-bearing: map literal first, then list literal, then JSON, then opaque
// text. JSON's {} and [] delimiters are a superset of the simpler literal
// forms, so JSON must be tried only after the more specific detectors.
func Classify(raw string) (Kind, interface{}) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		if v, ok := parseLiteral(trimmed); ok {
			if m, isMap := v.(*OrderedMap); isMap {
				return KindMap, m
			}
		}
	}
	if strings.HasPrefix(trimmed, "[") {
		if v, ok := parseLiteral(trimmed); ok {
			if list, isList := v.([]interface{}); isList {
				return KindList, list
			}
		}
	}
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		var v interface{}
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return KindJSON, orderJSON(v)
		}
	}
	return KindText, raw
}

// orderJSON converts decoded JSON maps into OrderedMaps with sorted keys.
// encoding/json does not preserve document order, so sorting at least keeps
// the rendering deterministic.
func orderJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := newOrderedMap()
		for _, k := range keys {
			m.set(k, orderJSON(val[k]))
		}
		return m
	case []interface{}:
		for i, item := range val {
			val[i] = orderJSON(item)
		}
		return val
	default:
		return v
	}
}

// literal parser for the map/list forms scripts emit: bare or quoted map
// keys, quoted strings, numbers, booleans, undefined, nested containers.

type literalParser struct {
	input string
	pos   int
}

func parseLiteral(s string) (interface{}, bool) {
	p := &literalParser{input: s}
	v, ok := p.parseValue()
	if !ok {
		return nil, false
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, false
	}
	return v, true
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) parseValue() (interface{}, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, false
	}
	switch c := p.input[p.pos]; {
	case c == '{':
		return p.parseMap()
	case c == '[':
		return p.parseList()
	case c == '"':
		return p.parseString()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseWord()
	}
}

func (p *literalParser) parseMap() (interface{}, bool) {
	p.pos++ // consume '{'
	m := newOrderedMap()
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '}' {
		p.pos++
		return m, true
	}
	for {
		p.skipSpace()
		key, ok := p.parseKey()
		if !ok {
			return nil, false
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ':' {
			return nil, false
		}
		p.pos++
		value, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		m.set(key, value)
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, false
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return m, true
		default:
			return nil, false
		}
	}
}

func (p *literalParser) parseList() (interface{}, bool) {
	p.pos++ // consume '['
	list := make([]interface{}, 0)
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ']' {
		p.pos++
		return list, true
	}
	for {
		value, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		list = append(list, value)
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, false
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return list, true
		default:
			return nil, false
		}
	}
}

func (p *literalParser) parseKey() (string, bool) {
	if p.pos < len(p.input) && p.input[p.pos] == '"' {
		s, ok := p.parseString()
		if !ok {
			return "", false
		}
		return s.(string), true
	}
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", false
	}
	return p.input[start:p.pos], true
}

func (p *literalParser) parseString() (interface{}, bool) {
	start := p.pos
	p.pos++ // consume opening quote
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			p.pos++
			s, err := strconv.Unquote(p.input[start:p.pos])
			if err != nil {
				return nil, false
			}
			return s, true
		default:
			p.pos++
		}
	}
	return nil, false
}

func (p *literalParser) parseNumber() (interface{}, bool) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	text := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (p *literalParser) parseWord() (interface{}, bool) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	switch p.input[start:p.pos] {
	case "true":
		return true, true
	case "false":
		return false, true
	case "undefined":
		return nil, true
	default:
		return nil, false
	}
}
