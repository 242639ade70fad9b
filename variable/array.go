package variable

import (
	"fmt"
)

// ArrayVariable stores a json-array-shaped value. When the declared item type
// is an object with a child template, each element is rebuilt through the
// template so only declared properties survive; otherwise the raw array is
// stored as-is.
type ArrayVariable struct {
	baseVariable
	ItemType string     `json:"itemType,omitempty"`
	Children []Variable `json:"children,omitempty"`
}

func (av *ArrayVariable) GetKind() string { return KindArray }

func (av *ArrayVariable) IsValid(v any) (bool, string) {
	if _, ok := v.([]any); !ok {
		return false, invalidMsg(av.Name, v, "array type")
	}
	return true, ""
}

func (av *ArrayVariable) SetValue(v any) (bool, string) {
	v = ToJSONValue(v)
	if ok, reason := av.IsValid(v); !ok {
		return false, reason
	}
	arr := v.([]any)
	if av.ItemType == KindObject && len(av.Children) > 0 {
		rebuilt := make([]any, 0, len(arr))
		for _, item := range arr {
			obj, err := av.buildItemObject(item)
			if err != nil {
				return false, err.Error()
			}
			rebuilt = append(rebuilt, obj)
		}
		av.store(rebuilt)
		return true, ""
	}
	av.store(arr)
	return true, ""
}

// buildItemObject applies the child template to one array element, keeping
// only declared properties.
func (av *ArrayVariable) buildItemObject(item any) (map[string]any, error) {
	src, _ := item.(map[string]any)
	out := make(map[string]any, len(av.Children))
	for _, tmpl := range av.Children {
		child := tmpl.Clone()
		child.Reset()
		var cv any
		if src != nil {
			cv = src[child.GetName()]
		}
		if ok, reason := child.SetValue(cv); !ok {
			return nil, fmt.Errorf("variable %s property %s set failed: %s", av.Name, child.GetName(), reason)
		}
		tv, err := child.GetTypedValue()
		if err != nil {
			return nil, err
		}
		out[child.GetName()] = tv
	}
	return out, nil
}

func (av *ArrayVariable) GetValue() (any, error) {
	return av.getValue(KindArray, av.IsValid)
}

func (av *ArrayVariable) GetTypedValue() (any, error) {
	return av.GetValue()
}

func (av *ArrayVariable) Clone() Variable {
	c := *av
	c.Children = cloneChildren(av.Children)
	return &c
}
