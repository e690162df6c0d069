package dto

import (
	"encoding/base64"
	"fmt"
)

type KV struct {
	Key      string `json:"key"`
	ValueB64 string `json:"value"`
}

func NewKV(key string, value []byte) KV {
	return KV{
		Key:      key,
		ValueB64: base64.StdEncoding.EncodeToString(value),
	}
}

func NewKVs(data map[string][]byte) []KV {
	res := make([]KV, 0, len(data))
	for k, v := range data {
		res = append(res, NewKV(k, v))
	}
	return res
}

func KVsToMap(kvs []KV) (map[string][]byte, error) {
	res := make(map[string][]byte, len(kvs))
	for _, kv := range kvs {
		data, err := base64.StdEncoding.DecodeString(kv.ValueB64)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 of %s: %w", kv.Key, err)
		}
		res[kv.Key] = data
	}
	return res, nil
}
