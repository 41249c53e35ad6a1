package cacheinfra

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeValue serializes a fetched value for a remote store.
func encodeValue(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// decodeValue decodes data into a fresh value of type t and returns it as any.
func decodeValue(data []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
