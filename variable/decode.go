package variable

import (
	"encoding/json"
	"fmt"
)

// Decode builds a concrete Variable from its typeName-tagged JSON form.
func Decode(data []byte) (Variable, error) {
	var head struct {
		TypeName string `json:"typeName"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding variable: %w", err)
	}
	var v Variable
	switch head.TypeName {
	case KindLong:
		v = new(LongVariable)
	case KindDecimal:
		v = new(DecimalVariable)
	case KindString:
		v = new(StringVariable)
	case KindBoolean:
		v = new(BooleanVariable)
	case KindDateTime:
		v = new(DateTimeVariable)
	case KindObject:
		v = new(ObjectVariable)
	case KindArray:
		v = new(ArrayVariable)
	default:
		return nil, fmt.Errorf("unknown variable type %q", head.TypeName)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", head.TypeName, err)
	}
	return v, nil
}

// DecodeList decodes a heterogeneous variable list.
func DecodeList(raw []json.RawMessage) ([]Variable, error) {
	out := make([]Variable, 0, len(raw))
	for _, item := range raw {
		v, err := Decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ov *ObjectVariable) UnmarshalJSON(data []byte) error {
	var aux struct {
		Id           string            `json:"id"`
		Name         string            `json:"name"`
		Required     bool              `json:"required"`
		DefaultValue any               `json:"defaultValue"`
		Children     []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	children, err := DecodeList(aux.Children)
	if err != nil {
		return err
	}
	ov.Id = aux.Id
	ov.Name = aux.Name
	ov.Required = aux.Required
	ov.DefaultValue = aux.DefaultValue
	ov.Children = children
	return nil
}

func (av *ArrayVariable) UnmarshalJSON(data []byte) error {
	var aux struct {
		Id           string            `json:"id"`
		Name         string            `json:"name"`
		Required     bool              `json:"required"`
		DefaultValue any               `json:"defaultValue"`
		ItemType     string            `json:"itemType"`
		Children     []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	children, err := DecodeList(aux.Children)
	if err != nil {
		return err
	}
	av.Id = aux.Id
	av.Name = aux.Name
	av.Required = aux.Required
	av.DefaultValue = aux.DefaultValue
	av.ItemType = aux.ItemType
	av.Children = children
	return nil
}
