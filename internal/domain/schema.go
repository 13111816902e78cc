package domain

// ObjectSchema describes an sObject type: its key prefix and field metadata.
type ObjectSchema struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	KeyPrefix string  `json:"keyPrefix"`
	Fields    []Field `json:"fields"`
}

// Field describes one field on an sObject schema.
type Field struct {
	Name           string   `json:"name"`
	Label          string   `json:"label"`
	Type           string   `json:"type"`
	Length         int      `json:"length,omitempty"`
	Required       bool     `json:"required"`
	Createable     bool     `json:"createable"`
	Updateable     bool     `json:"updateable"`
	ExternalID     bool     `json:"externalId"`
	PicklistValues []string `json:"picklistValues,omitempty"`
}

// FieldByName returns the field definition with the given name, or nil.
func (s *ObjectSchema) FieldByName(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// RequiredFields returns the names of all required fields on the schema.
func (s *ObjectSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// FieldNames returns all field names in schema order.
func (s *ObjectSchema) FieldNames() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}
