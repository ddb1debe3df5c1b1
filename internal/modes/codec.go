package modes

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Modes travel as two-element arrays, [m, n], in both YAML config files and
// the JSON bridge protocol.

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{m.M, m.N})
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("mode: expected [m, n], got %d values", len(pair))
	}
	m.M, m.N = pair[0], pair[1]
	return nil
}

func (m Mode) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []int{m.M, m.N} {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: fmt.Sprint(v),
		})
	}
	return node, nil
}

func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: mode must be a [m, n] pair", value.Line)
	}
	var pair [2]int
	for i, item := range value.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!int" {
			return fmt.Errorf("line %d: wavenumber %q is not an integer", item.Line, item.Value)
		}
		if err := item.Decode(&pair[i]); err != nil {
			return fmt.Errorf("line %d: %w", item.Line, err)
		}
	}
	m.M, m.N = pair[0], pair[1]
	return nil
}
