package model

import "fmt"

type OpKind uint8

const (
	OpInsert OpKind = iota + 1
	OpInsertMany
	OpDelete
	OpDeleteMany
	OpDeletePrefix
	OpClear
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpInsertMany:
		return "insert_many"
	case OpDelete:
		return "delete"
	case OpDeleteMany:
		return "delete_many"
	case OpDeletePrefix:
		return "delete_prefix"
	case OpClear:
		return "clear"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Op is a single mutation submitted against the store.
// Only the fields relevant to Kind are set.
type Op struct {
	Kind   OpKind
	Key    string
	Value  []byte
	Data   map[string][]byte
	Keys   []string
	Prefix string
}

func InsertOp(key string, value []byte) Op {
	return Op{Kind: OpInsert, Key: key, Value: value}
}

func InsertManyOp(data map[string][]byte) Op {
	return Op{Kind: OpInsertMany, Data: data}
}

func DeleteOp(key string) Op {
	return Op{Kind: OpDelete, Key: key}
}

func DeleteManyOp(keys []string) Op {
	return Op{Kind: OpDeleteMany, Keys: keys}
}

func DeletePrefixOp(prefix string) Op {
	return Op{Kind: OpDeletePrefix, Prefix: prefix}
}

func ClearOp() Op {
	return Op{Kind: OpClear}
}
