package external

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/mattthias/cfacter/pkg/value"
)

// toStarlark converts a fact value into its Starlark form.
func toStarlark(v value.Value) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case value.None:
		return starlark.None, nil
	case value.Boolean:
		return starlark.Bool(val), nil
	case value.Integer:
		return starlark.MakeInt64(int64(val)), nil
	case value.Double:
		return starlark.Float(val), nil
	case value.String:
		return starlark.String(val), nil
	case *value.Array:
		list := make([]starlark.Value, 0, val.Len())
		for _, item := range val.Elements() {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			list = append(list, sv)
		}
		return starlark.NewList(list), nil
	case *value.Map:
		dict := starlark.NewDict(val.Len())
		for _, k := range val.Keys() {
			item, _ := val.Get(k)
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported value kind: %s", v.Kind())
	}
}

// fromStarlark converts a Starlark value into a fact value. Dict and struct
// fields keep their Starlark iteration order, which for dicts is insertion
// order.
func fromStarlark(v starlark.Value) (value.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return value.None{}, nil
	case starlark.Bool:
		return value.Boolean(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large for a fact value")
		}
		return value.Integer(i), nil
	case starlark.Float:
		return value.Double(val), nil
	case starlark.String:
		return value.String(val), nil
	case *starlark.List:
		arr := value.NewArray()
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
		return arr, nil
	case starlark.Tuple:
		arr := value.NewArray()
		for _, item := range val {
			elem, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			arr.Append(elem)
		}
		return arr, nil
	case *starlark.Dict:
		m := value.NewMap()
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			elem, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			m.Put(string(key), elem)
		}
		return m, nil
	case *starlarkstruct.Struct:
		m := value.NewMap()
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			elem, err := fromStarlark(attr)
			if err != nil {
				return nil, err
			}
			m.Put(name, elem)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
