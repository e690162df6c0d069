package akv

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ProtoMessage is satisfied by pointers to generated protobuf structs.
type ProtoMessage[T any] interface {
	*T
	proto.Message
}

// GetProto decodes value stored at key. Undecodable values are treated as absent.
//
//	msg, found := akv.GetProto[pb.User](store, "users/1")
func GetProto[T any, PT ProtoMessage[T]](r Reader, key Key) (PT, bool) {
	val, found := r.Get(key)
	if !found {
		return nil, false
	}

	msg := PT(new(T))
	if err := proto.Unmarshal(val, msg); err != nil {
		return nil, false
	}

	return msg, true
}

func GetProtoMany[T any, PT ProtoMessage[T]](r Reader, keys []Key) map[Key]PT {
	return decodeProtoMap[T, PT](r.GetMany(keys))
}

func GetProtoAll[T any, PT ProtoMessage[T]](r Reader) map[Key]PT {
	return decodeProtoMap[T, PT](r.GetAll())
}

func GetProtoWithPrefix[T any, PT ProtoMessage[T]](r Reader, prefix Key) map[Key]PT {
	return decodeProtoMap[T, PT](r.GetWithPrefix(prefix))
}

func SetProto(w Writer, key Key, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding proto: %w", err)
	}

	w.Set(key, data)
	return nil
}

// SetProtoMany writes nothing if any message fails to encode.
func SetProtoMany[M proto.Message](w Writer, msgs map[Key]M) error {
	data := make(map[Key]Value, len(msgs))
	for k, msg := range msgs {
		enc, err := proto.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding proto for %s: %w", k, err)
		}
		data[k] = enc
	}

	w.SetMany(data)
	return nil
}

func decodeProtoMap[T any, PT ProtoMessage[T]](data map[Key]Value) map[Key]PT {
	res := make(map[Key]PT, len(data))
	for k, v := range data {
		msg := PT(new(T))
		if err := proto.Unmarshal(v, msg); err != nil {
			continue
		}
		res[k] = msg
	}
	return res
}
