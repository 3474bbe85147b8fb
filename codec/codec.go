// Package codec turns an ordered list of services into the stable text
// representation that gets stored against a dynamic-store column, and back.
package codec

import (
	"github.com/cockroachdb/errors"

	"svc-registry/compressor"
	"svc-registry/parser"
	"svc-registry/registry"
)

// Codec encodes/decodes the service list carried by one column. Round-trip
// stable: Decode(Encode(s)) == s. Forward-tolerant to added fields, since the
// underlying parser is JSON and ignores unknown keys on decode.
type Codec interface {
	Encode(services []registry.Service) ([]byte, error)
	Decode(blob []byte) ([]registry.Service, error)
}

// payload is the codec encodes; kept separate from registry.Service so the
// wire shape can gain fields without touching the domain type.
type payload struct {
	Services []registry.Service `json:"services"`
}

// serviceCodec composes a text parser with an optional compressor. The
// compressor runs after marshaling and before unmarshaling, so it is
// transparent to the parser.
type serviceCodec struct {
	parser     parser.Parser
	compressor compressor.Compresser
}

// New builds a Codec from a parser and a compressor. Pass compressor.NoneCompressor{}
// to store the marshaled text uncompressed.
func New(p parser.Parser, c compressor.Compresser) Codec {
	return &serviceCodec{parser: p, compressor: c}
}

// NewJSON builds the default codec: JSON text, uncompressed.
func NewJSON() Codec {
	return New(&parser.JSONParser{}, compressor.NoneCompressor{})
}

func (c *serviceCodec) Encode(services []registry.Service) ([]byte, error) {
	raw, err := c.parser.Marshal(payload{Services: services})
	if err != nil {
		return nil, errors.Wrap(err, "codec: marshal services")
	}

	compressed, err := c.compressor.Compress(raw)
	if err != nil {
		return nil, errors.Wrap(err, "codec: compress payload")
	}

	return compressed, nil
}

func (c *serviceCodec) Decode(blob []byte) ([]registry.Service, error) {
	raw, err := c.compressor.Decompress(blob)
	if err != nil {
		return nil, errors.Wrap(err, "codec: decompress payload")
	}

	var p payload
	if err := c.parser.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "codec: unmarshal services")
	}

	return p.Services, nil
}
