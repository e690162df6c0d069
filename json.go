package akv

import (
	"encoding/json"
	"fmt"
)

// GetJSON decodes value stored at key. Undecodable values are treated as absent.
func GetJSON[T any](r Reader, key Key) (T, bool) {
	var res T

	val, found := r.Get(key)
	if !found {
		return res, false
	}

	if err := json.Unmarshal(val, &res); err != nil {
		return *new(T), false
	}

	return res, true
}

func GetJSONMany[T any](r Reader, keys []Key) map[Key]T {
	return decodeJSONMap[T](r.GetMany(keys))
}

func GetJSONAll[T any](r Reader) map[Key]T {
	return decodeJSONMap[T](r.GetAll())
}

func GetJSONWithPrefix[T any](r Reader, prefix Key) map[Key]T {
	return decodeJSONMap[T](r.GetWithPrefix(prefix))
}

func SetJSON[T any](w Writer, key Key, value T) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}

	w.Set(key, data)
	return nil
}

// SetJSONMany writes nothing if any value fails to encode.
func SetJSONMany[T any](w Writer, values map[Key]T) error {
	data := make(map[Key]Value, len(values))
	for k, v := range values {
		enc, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding json for %s: %w", k, err)
		}
		data[k] = enc
	}

	w.SetMany(data)
	return nil
}

func decodeJSONMap[T any](data map[Key]Value) map[Key]T {
	res := make(map[Key]T, len(data))
	for k, v := range data {
		var dec T
		if err := json.Unmarshal(v, &dec); err != nil {
			continue
		}
		res[k] = dec
	}
	return res
}
