package variable

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// DateTimeVariable accepts an already-typed time or a parseable date string.
type DateTimeVariable struct {
	baseVariable
}

func (dv *DateTimeVariable) GetKind() string { return KindDateTime }

func (dv *DateTimeVariable) IsValid(v any) (bool, string) {
	if v == nil {
		return true, ""
	}
	if _, ok := toTime(v); !ok {
		return false, invalidMsg(dv.Name, v, "date type")
	}
	return true, ""
}

func (dv *DateTimeVariable) SetValue(v any) (bool, string) {
	if _, ok := v.(time.Time); !ok {
		v = ToJSONValue(v)
	}
	if ok, reason := dv.IsValid(v); !ok {
		return false, reason
	}
	dv.store(v)
	return true, ""
}

func (dv *DateTimeVariable) GetValue() (any, error) {
	return dv.getValue(KindDateTime, dv.IsValid)
}

func (dv *DateTimeVariable) GetTypedValue() (any, error) {
	v, err := dv.GetValue()
	if err != nil || v == nil {
		return nil, err
	}
	t, ok := toTime(v)
	if !ok {
		return nil, fmt.Errorf("variable %s holds a non-date value %v", dv.Name, v)
	}
	return t, nil
}

func (dv *DateTimeVariable) Clone() Variable {
	c := *dv
	return &c
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := cast.StringToDateInDefaultLocation(t, time.Local)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}
