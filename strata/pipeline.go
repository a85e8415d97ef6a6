package strata

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Codec Pipeline
// -----------------------------------------------------------------------------

// ErrInvalidPipeline indicates a codec stage list that violates the
// required ordering: array-to-array stages, then exactly one
// array-to-bytes stage, then bytes-to-bytes stages.
var ErrInvalidPipeline = errors.New("invalid codec pipeline")

// CodecPipeline is an ordered, immutable stack of codec stages. It is
// constructed once from an array's metadata at open time and shared
// read-only across concurrent chunk operations; all per-call state lives
// in the transient partial-decoder chains it builds.
type CodecPipeline struct {
	arrayToArray []ArrayToArrayCodec
	arrayToBytes ArrayToBytesCodec
	bytesToBytes []BytesToBytesCodec
}

// NewCodecPipeline builds a pipeline from codec instances, in pipeline
// order. The stage list must contain exactly one array-to-bytes codec,
// preceded only by array-to-array codecs and followed only by
// bytes-to-bytes codecs.
func NewCodecPipeline(codecs ...Codec) (*CodecPipeline, error) {
	p := &CodecPipeline{}
	for _, c := range codecs {
		// The array-to-bytes and bytes-to-bytes interfaces have identical
		// method sets, so a type switch cannot tell them apart; classify by
		// the codec's declared kind and assert the matching interface.
		switch c.Kind() {
		case KindArrayToArray:
			stage, ok := c.(ArrayToArrayCodec)
			if !ok {
				return nil, fmt.Errorf("%w: codec %q does not implement its declared kind %s",
					ErrInvalidPipeline, c.Name(), c.Kind())
			}
			if p.arrayToBytes != nil {
				return nil, fmt.Errorf("%w: array-to-array codec %q after the array-to-bytes stage",
					ErrInvalidPipeline, stage.Name())
			}
			p.arrayToArray = append(p.arrayToArray, stage)
		case KindArrayToBytes:
			stage, ok := c.(ArrayToBytesCodec)
			if !ok {
				return nil, fmt.Errorf("%w: codec %q does not implement its declared kind %s",
					ErrInvalidPipeline, c.Name(), c.Kind())
			}
			if p.arrayToBytes != nil {
				return nil, fmt.Errorf("%w: multiple array-to-bytes codecs (%q and %q)",
					ErrInvalidPipeline, p.arrayToBytes.Name(), stage.Name())
			}
			p.arrayToBytes = stage
		case KindBytesToBytes:
			stage, ok := c.(BytesToBytesCodec)
			if !ok {
				return nil, fmt.Errorf("%w: codec %q does not implement its declared kind %s",
					ErrInvalidPipeline, c.Name(), c.Kind())
			}
			if p.arrayToBytes == nil {
				return nil, fmt.Errorf("%w: bytes-to-bytes codec %q before the array-to-bytes stage",
					ErrInvalidPipeline, stage.Name())
			}
			p.bytesToBytes = append(p.bytesToBytes, stage)
		default:
			return nil, fmt.Errorf("%w: codec %q has unknown kind %s", ErrInvalidPipeline, c.Name(), c.Kind())
		}
	}
	if p.arrayToBytes == nil {
		return nil, fmt.Errorf("%w: missing array-to-bytes codec", ErrInvalidPipeline)
	}
	return p, nil
}

// NewCodecPipelineFromMetadata builds a pipeline from stage descriptors as
// they appear in an array's metadata document.
func NewCodecPipelineFromMetadata(configs []CodecConfig) (*CodecPipeline, error) {
	codecs := make([]Codec, 0, len(configs))
	for _, cfg := range configs {
		c, err := newCodecFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, c)
	}
	return NewCodecPipeline(codecs...)
}

// Encode applies every stage in forward order to a decoded chunk buffer,
// producing the bytes written to storage. Encoding always processes whole
// chunks; there is no partial variant.
func (p *CodecPipeline) Encode(spec ChunkSpec, decoded []byte) ([]byte, error) {
	data := decoded
	var err error
	for _, c := range p.arrayToArray {
		if data, err = c.EncodeArray(spec, data); err != nil {
			return nil, fmt.Errorf("codec %q: %w", c.Name(), err)
		}
	}
	if data, err = p.arrayToBytes.Encode(spec, data); err != nil {
		return nil, fmt.Errorf("codec %q: %w", p.arrayToBytes.Name(), err)
	}
	for _, c := range p.bytesToBytes {
		if data, err = c.Encode(spec, data); err != nil {
			return nil, fmt.Errorf("codec %q: %w", c.Name(), err)
		}
	}
	return data, nil
}

// Decode applies every stage in reverse order to an encoded chunk buffer,
// reconstructing the decoded chunk.
func (p *CodecPipeline) Decode(spec ChunkSpec, encoded []byte) ([]byte, error) {
	data := encoded
	var err error
	for i := len(p.bytesToBytes) - 1; i >= 0; i-- {
		c := p.bytesToBytes[i]
		if data, err = c.Decode(spec, data); err != nil {
			return nil, fmt.Errorf("codec %q: %w", c.Name(), err)
		}
	}
	if data, err = p.arrayToBytes.Decode(spec, data); err != nil {
		return nil, fmt.Errorf("codec %q: %w", p.arrayToBytes.Name(), err)
	}
	for i := len(p.arrayToArray) - 1; i >= 0; i-- {
		c := p.arrayToArray[i]
		if data, err = c.DecodeArray(spec, data); err != nil {
			return nil, fmt.Errorf("codec %q: %w", c.Name(), err)
		}
	}
	return data, nil
}

// NewPartialDecoder builds the partial-decoder chain for one chunk key:
// a store-backed decoder at the bottom, one per-codec decoder per
// bytes-to-bytes stage (outermost encoded layer first), the
// array-to-bytes stage's decoder, and a full-decode fallback for each
// array-to-array stage. Each node exclusively owns the one beneath it;
// the chain holds no state that outlives the request it serves.
func (p *CodecPipeline) NewPartialDecoder(spec ChunkSpec, store Store, key string) BytesDecoder {
	var dec BytesDecoder = newStoreDecoder(store, key)
	for i := len(p.bytesToBytes) - 1; i >= 0; i-- {
		dec = p.bytesToBytes[i].NewPartialDecoder(spec, dec)
	}
	dec = p.arrayToBytes.NewPartialDecoder(spec, dec)
	for i := len(p.arrayToArray) - 1; i >= 0; i-- {
		c := p.arrayToArray[i]
		dec = newFullDecoder(dec, func(data []byte) ([]byte, error) {
			return c.DecodeArray(spec, data)
		})
	}
	return dec
}

// PartialDecode builds a one-shot partial-decoder chain for key and serves
// the requested decoded byte ranges.
func (p *CodecPipeline) PartialDecode(ctx context.Context, spec ChunkSpec, store Store, key string, ranges []ByteRange, parallel bool) ([][]byte, error) {
	return p.NewPartialDecoder(spec, store, key).PartialDecode(ctx, ranges, parallel)
}
