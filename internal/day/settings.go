package day

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// ReasonTemplate is a user-defined reason-for-visit label with an
// optional display color. Older exports stored templates as bare
// strings; both forms decode.
type ReasonTemplate struct {
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// UnmarshalJSON accepts either a bare string or a {label,color} object.
func (t *ReasonTemplate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Label = s
		t.Color = ""
		return nil
	}
	type plain ReasonTemplate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = ReasonTemplate(p)
	return nil
}

// UnmarshalYAML accepts either a bare string or a {label,color} mapping,
// mirroring the JSON behavior for settings files.
func (t *ReasonTemplate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Label = node.Value
		t.Color = ""
		return nil
	}
	type plain ReasonTemplate
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = ReasonTemplate(p)
	return nil
}

// Settings holds the office addresses the default record is built from
// and the reason templates offered when editing stops. The core consumes
// settings read-only; changing them does not retroactively alter
// already-created records.
type Settings struct {
	StartAddress    string           `json:"startAddress" yaml:"startAddress"`
	EndAddress      string           `json:"endAddress" yaml:"endAddress"`
	ReasonTemplates []ReasonTemplate `json:"reasonTemplates" yaml:"reasonTemplates"`
}

// DefaultSettings returns the reference-deployment defaults.
func DefaultSettings() Settings {
	return Settings{
		StartAddress: "Алушта, ул. Снежковой 17Б",
		EndAddress:   "Алушта, ул. Снежковой 17Б",
		ReasonTemplates: []ReasonTemplate{
			{Label: "Плановое ТО", Color: "#4ade80"},
			{Label: "Не печатает чек", Color: "#f97316"},
			{Label: "Смена ФН", Color: "#f43f5e"},
			{Label: "Обновление ПО", Color: "#60a5fa"},
			{Label: "Замена терминала", Color: "#a78bfa"},
			{Label: "Сбой связи", Color: "#f59e0b"},
		},
	}
}

// Merge overlays non-zero fields of other onto s and returns the result.
// Used when a stored settings blob predates a field.
func (s Settings) Merge(other Settings) Settings {
	out := s
	if other.StartAddress != "" {
		out.StartAddress = other.StartAddress
	}
	if other.EndAddress != "" {
		out.EndAddress = other.EndAddress
	}
	if len(other.ReasonTemplates) > 0 {
		out.ReasonTemplates = other.ReasonTemplates
	}
	return out
}
