package weather

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// labelSet is one section of the translation resource. Codes keeps the order
// the codes were written in so output does not depend on map iteration.
type labelSet struct {
	Codes  []string          `validate:"required,min=1,dive,required"`
	Labels map[string]string `validate:"required,dive,keys,required,endkeys,required"`
}

func (l *labelSet) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of code to label", value.Line)
	}

	l.Labels = make(map[string]string, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var code, label string
		if err := value.Content[i].Decode(&code); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&label); err != nil {
			return err
		}

		if _, seen := l.Labels[code]; !seen {
			l.Codes = append(l.Codes, code)
		}
		l.Labels[code] = label
	}
	return nil
}

type translationFile struct {
	Parts      labelSet `yaml:"target_parts"`
	Conditions labelSet `yaml:"target_conditions"`
}

// Translator maps provider vocabulary to display strings.
type Translator struct {
	parts      labelSet
	conditions labelSet
}

// NewTranslatorFromFile loads the translation resource at path.
func NewTranslatorFromFile(path string) (*Translator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}

	t, err := NewTranslator(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// NewTranslator parses a YAML document with "target_parts" and
// "target_conditions" mappings. Both must be present and non-empty.
func NewTranslator(data []byte) (*Translator, error) {
	var f translationFile
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}

	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid translations: %w", err)
	}

	return &Translator{parts: f.Parts, conditions: f.Conditions}, nil
}

// Part returns the label of a day-part code.
func (t *Translator) Part(code string) (string, bool) {
	label, ok := t.parts.Labels[code]
	return label, ok
}

// Condition returns the label of a condition code.
func (t *Translator) Condition(code string) (string, bool) {
	label, ok := t.conditions.Labels[code]
	return label, ok
}

// TranslateDay keeps the parts of day whose day-part and condition are both
// known, in the order the day parts appear in the resource.
func (t *Translator) TranslateDay(day RawDay) []DayPart {
	var parts []DayPart
	for _, code := range t.parts.Codes {
		condition, ok := day.Condition(code)
		if !ok {
			continue
		}
		label, ok := t.Condition(condition)
		if !ok {
			continue
		}
		parts = append(parts, DayPart{Name: t.parts.Labels[code], Condition: label})
	}
	return parts
}
