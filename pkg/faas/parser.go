package faas

import "encoding/json"

// Parser is the out-of-scope serialization collaborator reduced to
// its two operations: turning a value into an opaque string blob and
// back. The core never inspects the blob's contents; it serializes
// function payloads and call parameters and deserializes results.
type Parser interface {
	Serialize(v interface{}) (string, error)
	Deserialize(blob string, out interface{}) error
}

// JSONParser is the default Parser: a JSON codec, adequate for any
// value the embedding application can marshal. Applications with a
// richer calling convention (pickled bytecode, protobuf) supply their
// own Parser.
type JSONParser struct{}

// Serialize encodes v as a JSON string.
func (JSONParser) Serialize(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Deserialize decodes blob into out.
func (JSONParser) Deserialize(blob string, out interface{}) error {
	return json.Unmarshal([]byte(blob), out)
}
