// Package loader reads the reference tables consumed by the rule engine: the comorbidity
// mapping and the FORTA indication mapping (JSON or YAML) and the FORTA classification
// table (CSV or SQL).
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
	"github.com/forta-classifier/internal/rules"
)

// LoadComorbidityTableJSON reads an ordered comorbidity mapping:
//
//	{"<label>": [{"<field>": [<accepted>, ...], ...}, ...], ...}
//
// The key order of the document is the evaluation order.
func LoadComorbidityTableJSON(r io.Reader) (*rules.ComorbidityTable, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var ruleList []rules.ComorbidityRule
	err := walkJSONObject(dec, func(key string) error {
		var sets []map[string][]any
		if err := dec.Decode(&sets); err != nil {
			return fmt.Errorf("label %q: %w", key, err)
		}
		ruleList = append(ruleList, comorbidityRule(key, sets))
		return nil
	})
	if err != nil {
		return nil, referenceError("comorbidity mapping", err)
	}

	return rules.NewComorbidityTable(ruleList...)
}

// LoadIndicationTableJSON reads a comorbidity-to-indication mapping whose entries are either
// plain indication strings or {"<predicate>": "<indication>"} objects.
func LoadIndicationTableJSON(r io.Reader) (rules.IndicationTable, error) {
	dec := json.NewDecoder(r)

	table := make(rules.IndicationTable)
	err := walkJSONObject(dec, func(key string) error {
		var entries []any
		if err := dec.Decode(&entries); err != nil {
			return fmt.Errorf("label %q: %w", key, err)
		}
		return addIndicationEntries(table, key, entries)
	})
	if err != nil {
		return nil, referenceError("indication mapping", err)
	}

	return table, nil
}

// LoadComorbidityTableYAML reads the YAML form of the comorbidity mapping; mapping order is
// the evaluation order.
func LoadComorbidityTableYAML(r io.Reader) (*rules.ComorbidityTable, error) {
	var ruleList []rules.ComorbidityRule
	err := walkYAMLMapping(r, func(key string, value *yaml.Node) error {
		var sets []map[string][]any
		if err := value.Decode(&sets); err != nil {
			return fmt.Errorf("label %q: %w", key, err)
		}
		ruleList = append(ruleList, comorbidityRule(key, sets))
		return nil
	})
	if err != nil {
		return nil, referenceError("comorbidity mapping", err)
	}

	return rules.NewComorbidityTable(ruleList...)
}

// LoadIndicationTableYAML reads the YAML form of the indication mapping.
func LoadIndicationTableYAML(r io.Reader) (rules.IndicationTable, error) {
	table := make(rules.IndicationTable)
	err := walkYAMLMapping(r, func(key string, value *yaml.Node) error {
		var entries []any
		if err := value.Decode(&entries); err != nil {
			return fmt.Errorf("label %q: %w", key, err)
		}
		return addIndicationEntries(table, key, entries)
	})
	if err != nil {
		return nil, referenceError("indication mapping", err)
	}

	return table, nil
}

// walkJSONObject calls fn for each key of the top-level object in document order; fn must
// consume the value.
func walkJSONObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("document must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read end of document: %w", err)
	}
	return nil
}

func walkYAMLMapping(r io.Reader, fn func(key string, value *yaml.Node) error) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("document is empty")
		}
		return fmt.Errorf("failed to parse document: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: document must be a mapping", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
		}
		if err := fn(keyNode.Value, valueNode); err != nil {
			return fmt.Errorf("line %d: %w", keyNode.Line, err)
		}
	}
	return nil
}

func comorbidityRule(label string, sets []map[string][]any) rules.ComorbidityRule {
	conditions := make([]rules.ConditionSet, 0, len(sets))
	for _, set := range sets {
		cs := make(rules.ConditionSet, len(set))
		for field, accepted := range set {
			if accepted == nil {
				accepted = []any{}
			}
			cs[field] = accepted
		}
		conditions = append(conditions, cs)
	}
	return rules.ComorbidityRule{
		Label:      domain.Label(normalize.Text(label)),
		Conditions: conditions,
	}
}

func addIndicationEntries(table rules.IndicationTable, key string, entries []any) error {
	label := domain.Label(normalize.Text(key))
	if _, exists := table[label]; exists {
		return fmt.Errorf("duplicate label %q", key)
	}

	parsed := make([]rules.IndicationEntry, 0, len(entries))
	for i, entry := range entries {
		switch e := entry.(type) {
		case string:
			parsed = append(parsed, rules.Plain(domain.Indication(normalize.Text(e))))
		case map[string]any:
			conditional := make(map[string]domain.Indication, len(e))
			for predicate, value := range e {
				indication, ok := value.(string)
				if !ok {
					return fmt.Errorf("label %q entry %d: predicate %q must map to an indication string", key, i, predicate)
				}
				conditional[predicate] = domain.Indication(normalize.Text(indication))
			}
			parsed = append(parsed, rules.When(conditional))
		default:
			return fmt.Errorf("label %q entry %d: expected string or object, got %T", key, i, entry)
		}
	}

	table[label] = parsed
	return nil
}

func referenceError(source string, err error) error {
	return &domain.ReferenceDataError{Source: source, Reason: err.Error()}
}
