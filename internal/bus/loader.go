package bus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionsFile is the YAML layout of a message definitions file.
type definitionsFile struct {
	Messages []messageDefinition `yaml:"messages"`
}

// messageDefinition describes one catalog entry in the definitions file.
type messageDefinition struct {
	Circuit  string            `yaml:"circuit"`
	Name     string            `yaml:"name"`
	Level    string            `yaml:"level"`
	Write    bool              `yaml:"write"`
	Passive  bool              `yaml:"passive"`
	Priority int               `yaml:"priority"`
	Fields   []fieldDefinition `yaml:"fields"`

	// Values seeds the simulator with initial field values.
	Values []string `yaml:"values"`
}

// fieldDefinition describes one field of a message definition.
type fieldDefinition struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Unit    string `yaml:"unit"`
	Comment string `yaml:"comment"`
}

// LoadDefinitions reads a YAML message definitions file into catalog entries.
// The returned seed values map (by catalog key) feeds the Simulator transport.
func LoadDefinitions(path string) ([]*Message, map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading definitions file: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing definitions file: %w", err)
	}

	messages := make([]*Message, 0, len(file.Messages))
	seeds := make(map[string][]string)
	for i, def := range file.Messages {
		if def.Circuit == "" || def.Name == "" {
			return nil, nil, fmt.Errorf("%w: entry %d is missing circuit or name", ErrInvalidDefinition, i)
		}
		if def.Priority < 0 || def.Priority > 9 {
			return nil, nil, fmt.Errorf("%w: entry %s/%s has priority %d outside 0-9",
				ErrInvalidDefinition, def.Circuit, def.Name, def.Priority)
		}
		fields := make([]Field, 0, len(def.Fields))
		for _, fd := range def.Fields {
			fieldType := TypeString
			if fd.Type != "" {
				fieldType, err = ParseFieldType(fd.Type)
				if err != nil {
					return nil, nil, fmt.Errorf("entry %s/%s field %s: %w", def.Circuit, def.Name, fd.Name, err)
				}
			}
			fields = append(fields, Field{
				Name:    fd.Name,
				Type:    fieldType,
				Unit:    fd.Unit,
				Comment: fd.Comment,
			})
		}
		msg := NewMessage(def.Circuit, def.Name, def.Level, def.Write, def.Passive, def.Priority, fields)
		messages = append(messages, msg)
		if len(def.Values) > 0 {
			seeds[msg.Key()] = def.Values
		}
	}
	return messages, seeds, nil
}
