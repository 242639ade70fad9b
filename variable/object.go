package variable

import (
	"fmt"
)

// ObjectVariable validates a json-object-shaped value against its declared
// children. A child is validated only when it is present and non-empty in the
// candidate; Required on the parent enforces presence of the object itself.
type ObjectVariable struct {
	baseVariable
	Children []Variable `json:"children,omitempty"`
}

func (ov *ObjectVariable) GetKind() string { return KindObject }

func (ov *ObjectVariable) IsValid(v any) (bool, string) {
	if ov.Required && v == nil {
		return false, fmt.Sprintf("%s cannot be null", ov.Name)
	}
	if v == nil {
		return true, ""
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return false, fmt.Sprintf("%s type error", ov.Name)
	}
	for _, child := range ov.Children {
		cv, present := obj[child.GetName()]
		if !present || cv == nil || Stringify(cv) == "" {
			continue
		}
		if ok, reason := child.IsValid(cv); !ok {
			return false, fmt.Sprintf("%s object property %s", ov.Name, reason)
		}
	}
	return true, ""
}

func (ov *ObjectVariable) SetValue(v any) (bool, string) {
	v = ToJSONValue(v)
	if ok, reason := ov.IsValid(v); !ok {
		return false, reason
	}
	ov.store(v)
	return true, ""
}

func (ov *ObjectVariable) GetValue() (any, error) {
	return ov.getValue(KindObject, ov.IsValid)
}

func (ov *ObjectVariable) GetTypedValue() (any, error) {
	return ov.GetValue()
}

func (ov *ObjectVariable) Clone() Variable {
	c := *ov
	c.Children = cloneChildren(ov.Children)
	return &c
}

func cloneChildren(children []Variable) []Variable {
	if children == nil {
		return nil
	}
	out := make([]Variable, len(children))
	for i, child := range children {
		out[i] = child.Clone()
	}
	return out
}
