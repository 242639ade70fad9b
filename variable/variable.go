package variable

import (
	"fmt"
)

// Kind discriminators, matching the typeName tags used by the flow designer.
const (
	KindLong     = "LongVariable"
	KindDecimal  = "DecimalVariable"
	KindString   = "StringVariable"
	KindBoolean  = "BooleanVariable"
	KindDateTime = "DateTimeVariable"
	KindObject   = "ObjectVariable"
	KindArray    = "ArrayVariable"
)

// Variable is a typed, validated value container. SetValue never fails with
// an error value for bad input; it reports (false, reason) and leaves the
// stored value untouched. A Variable instance is owned by exactly one flow
// definition or one run context; runs operate on clones.
type Variable interface {
	GetId() string
	GetName() string
	GetKind() string
	IsRequired() bool
	HasValue() bool

	// IsValid checks a candidate value against the kind's coercion policy.
	IsValid(v any) (bool, string)
	// SetValue stores v if valid. HasValue transitions to true only here.
	SetValue(v any) (bool, string)
	// GetValue returns the stored value, or the validated default. An invalid
	// default is a configuration error surfaced here, not at load time.
	GetValue() (any, error)
	// GetTypedValue returns the value coerced to the kind's native type.
	GetTypedValue() (any, error)
	Reset()
	Clone() Variable
}

type baseVariable struct {
	Id           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Required     bool   `json:"required,omitempty"`
	DefaultValue any    `json:"defaultValue"`

	value    any
	hasValue bool
}

func (b *baseVariable) GetId() string    { return b.Id }
func (b *baseVariable) GetName() string  { return b.Name }
func (b *baseVariable) IsRequired() bool { return b.Required }
func (b *baseVariable) HasValue() bool   { return b.hasValue }

func (b *baseVariable) Reset() {
	b.value = nil
	b.hasValue = false
}

// getValue resolves the current value using the concrete kind's validator for
// the declared default.
func (b *baseVariable) getValue(kind string, isValid func(any) (bool, string)) (any, error) {
	if b.hasValue {
		return b.value, nil
	}
	if b.DefaultValue == nil {
		return nil, nil
	}
	dv := ToJSONValue(b.DefaultValue)
	if ok, _ := isValid(dv); !ok {
		return nil, fmt.Errorf("variable %s default value %v cannot be converted to %s", b.Name, b.DefaultValue, kind)
	}
	return dv, nil
}

func (b *baseVariable) store(v any) {
	b.value = v
	b.hasValue = true
}

func invalidMsg(name string, v any, kind string) string {
	return fmt.Sprintf("variable %s value %v cannot be converted to %s", name, v, kind)
}

// LongVariable stores whole numbers.
type LongVariable struct {
	baseVariable
}

func (lv *LongVariable) GetKind() string { return KindLong }

func (lv *LongVariable) IsValid(v any) (bool, string) {
	if v == nil {
		return true, ""
	}
	if _, ok := CanConvertToLong(v); !ok {
		return false, invalidMsg(lv.Name, v, "long type")
	}
	return true, ""
}

func (lv *LongVariable) SetValue(v any) (bool, string) {
	v = ToJSONValue(v)
	if ok, reason := lv.IsValid(v); !ok {
		return false, reason
	}
	if n, ok := CanConvertToLong(v); ok {
		lv.store(n)
	} else {
		lv.store(v)
	}
	return true, ""
}

func (lv *LongVariable) GetValue() (any, error) {
	return lv.getValue(KindLong, lv.IsValid)
}

func (lv *LongVariable) GetTypedValue() (any, error) {
	v, err := lv.GetValue()
	if err != nil || v == nil {
		return nil, err
	}
	n, ok := CanConvertToLong(v)
	if !ok {
		return nil, fmt.Errorf("variable %s holds a non-long value %v", lv.Name, v)
	}
	return n, nil
}

func (lv *LongVariable) Clone() Variable {
	c := *lv
	return &c
}

// DecimalVariable stores floating point numbers.
type DecimalVariable struct {
	baseVariable
}

func (dv *DecimalVariable) GetKind() string { return KindDecimal }

func (dv *DecimalVariable) IsValid(v any) (bool, string) {
	if v == nil {
		return true, ""
	}
	if _, ok := toFloat(v); !ok {
		return false, invalidMsg(dv.Name, v, "decimal type")
	}
	return true, ""
}

func (dv *DecimalVariable) SetValue(v any) (bool, string) {
	v = ToJSONValue(v)
	if ok, reason := dv.IsValid(v); !ok {
		return false, reason
	}
	dv.store(v)
	return true, ""
}

func (dv *DecimalVariable) GetValue() (any, error) {
	return dv.getValue(KindDecimal, dv.IsValid)
}

func (dv *DecimalVariable) GetTypedValue() (any, error) {
	v, err := dv.GetValue()
	if err != nil || v == nil {
		return nil, err
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("variable %s holds a non-decimal value %v", dv.Name, v)
	}
	return f, nil
}

func (dv *DecimalVariable) Clone() Variable {
	c := *dv
	return &c
}

// StringVariable accepts anything and stores the raw representation.
type StringVariable struct {
	baseVariable
}

func (sv *StringVariable) GetKind() string { return KindString }

func (sv *StringVariable) IsValid(v any) (bool, string) {
	return true, ""
}

func (sv *StringVariable) SetValue(v any) (bool, string) {
	sv.store(ToJSONValue(v))
	return true, ""
}

func (sv *StringVariable) GetValue() (any, error) {
	return sv.getValue(KindString, sv.IsValid)
}

func (sv *StringVariable) GetTypedValue() (any, error) {
	v, err := sv.GetValue()
	if err != nil || v == nil {
		return nil, err
	}
	return Stringify(v), nil
}

func (sv *StringVariable) Clone() Variable {
	c := *sv
	return &c
}

// BooleanVariable normalizes its value to a native bool on SetValue.
type BooleanVariable struct {
	baseVariable
}

func (bv *BooleanVariable) GetKind() string { return KindBoolean }

func (bv *BooleanVariable) IsValid(v any) (bool, string) {
	if v == nil {
		return true, ""
	}
	if _, ok := CanConvertToBool(v); !ok {
		return false, invalidMsg(bv.Name, v, "boolean type")
	}
	return true, ""
}

func (bv *BooleanVariable) SetValue(v any) (bool, string) {
	v = ToJSONValue(v)
	if ok, reason := bv.IsValid(v); !ok {
		return false, reason
	}
	if b, ok := CanConvertToBool(v); ok {
		bv.store(b)
	} else {
		bv.store(v)
	}
	return true, ""
}

func (bv *BooleanVariable) GetValue() (any, error) {
	return bv.getValue(KindBoolean, bv.IsValid)
}

func (bv *BooleanVariable) GetTypedValue() (any, error) {
	v, err := bv.GetValue()
	if err != nil || v == nil {
		return nil, err
	}
	b, ok := CanConvertToBool(v)
	if !ok {
		return nil, fmt.Errorf("variable %s holds a non-boolean value %v", bv.Name, v)
	}
	return b, nil
}

func (bv *BooleanVariable) Clone() Variable {
	c := *bv
	return &c
}
