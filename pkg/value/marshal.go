package value

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// MarshalJSON implements json.Marshaler.
func (None) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler.
func (s String) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// MarshalJSON implements json.Marshaler.
func (i Integer) MarshalJSON() ([]byte, error) { return json.Marshal(int64(i)) }

// MarshalJSON implements json.Marshaler.
func (d Double) MarshalJSON() ([]byte, error) { return json.Marshal(float64(d)) }

// MarshalJSON implements json.Marshaler.
func (b Boolean) MarshalJSON() ([]byte, error) { return json.Marshal(bool(b)) }

// MarshalJSON implements json.Marshaler.
func (a *Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range a.elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in insertion
// order, which the stdlib encoder cannot do for a plain Go map.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML implements yaml.Marshaler.
func (None) MarshalYAML() (any, error) { return nil, nil }

// MarshalYAML implements yaml.Marshaler.
func (s String) MarshalYAML() (any, error) { return string(s), nil }

// MarshalYAML implements yaml.Marshaler.
func (i Integer) MarshalYAML() (any, error) { return int64(i), nil }

// MarshalYAML implements yaml.Marshaler.
func (d Double) MarshalYAML() (any, error) { return float64(d), nil }

// MarshalYAML implements yaml.Marshaler.
func (b Boolean) MarshalYAML() (any, error) { return bool(b), nil }

// MarshalYAML implements yaml.Marshaler.
func (a *Array) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range a.elems {
		child := &yaml.Node{}
		if err := child.Encode(e); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, child)
	}
	return node, nil
}

// MarshalYAML implements yaml.Marshaler, emitting keys in insertion order.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.vals[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}
