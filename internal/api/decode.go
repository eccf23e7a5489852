package api

import (
	"bytes"
	"encoding/json"
)

// Shape records which envelope a list response arrived in.
type Shape int

const (
	ShapeArray   Shape = iota // [...]
	ShapeResults              // {"results": [...]}
	ShapeData                 // {"data": [...]}
	ShapeUnknown
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeResults:
		return "results"
	case ShapeData:
		return "data"
	default:
		return "unknown"
	}
}

// List is a decoded list response. Items is never nil. For ShapeUnknown, Reason says why the
// body was not recognized.
type List[T any] struct {
	Shape  Shape
	Items  []T
	Reason string
}

// DecodeList accepts the list envelopes the task API is known to produce and returns one
// canonical slice. Anything else decodes to an empty ShapeUnknown list.
func DecodeList[T any](body []byte) List[T] {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return unknownList[T]("empty body")
	}

	switch body[0] {
	case '[':
		items, err := decodeItems[T](body)
		if err != nil {
			return unknownList[T](err.Error())
		}
		return List[T]{Shape: ShapeArray, Items: items}
	case '{':
		var env struct {
			Results json.RawMessage `json:"results"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return unknownList[T](err.Error())
		}
		if isArray(env.Results) {
			items, err := decodeItems[T](env.Results)
			if err != nil {
				return unknownList[T](err.Error())
			}
			return List[T]{Shape: ShapeResults, Items: items}
		}
		if isArray(env.Data) {
			items, err := decodeItems[T](env.Data)
			if err != nil {
				return unknownList[T](err.Error())
			}
			return List[T]{Shape: ShapeData, Items: items}
		}
		return unknownList[T]("object without results or data array")
	}
	return unknownList[T]("not a list")
}

func decodeItems[T any](raw []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func unknownList[T any](reason string) List[T] {
	return List[T]{Shape: ShapeUnknown, Items: []T{}, Reason: reason}
}
