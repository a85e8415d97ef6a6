package strata

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// Store-backed decoder
// -----------------------------------------------------------------------------

// storeDecoder is the base case at the bottom of every partial-decoder
// chain: a BytesDecoder over the raw encoded value of one key.
type storeDecoder struct {
	store Store
	key   string
}

func newStoreDecoder(store Store, key string) *storeDecoder {
	return &storeDecoder{store: store, key: key}
}

func (d *storeDecoder) Decode(ctx context.Context, _ bool) ([]byte, error) {
	return d.store.Get(ctx, d.key)
}

func (d *storeDecoder) PartialDecode(ctx context.Context, ranges []ByteRange, parallel bool) ([][]byte, error) {
	if !parallel || len(ranges) < 2 {
		return d.store.GetPartial(ctx, d.key, ranges)
	}

	// Independent range fetches may run concurrently; results are
	// reassembled in request order.
	out := make([][]byte, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			res, err := d.store.GetPartial(gctx, d.key, []ByteRange{r})
			if err != nil {
				return err
			}
			out[i] = res[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Full-decode fallback
// -----------------------------------------------------------------------------

// fullDecoder is the universal fallback for codecs that cannot serve byte
// ranges against their encoded form: it fully decodes the inner segment
// once per call and slices in memory. Correctness over performance; only
// the fast path varies between codecs.
type fullDecoder struct {
	inner  BytesDecoder
	decode func([]byte) ([]byte, error)
}

// newFullDecoder wraps inner with a decoder that materializes the whole
// decoded form via decode and serves ranges by slicing it.
func newFullDecoder(inner BytesDecoder, decode func([]byte) ([]byte, error)) BytesDecoder {
	return &fullDecoder{inner: inner, decode: decode}
}

func (d *fullDecoder) Decode(ctx context.Context, parallel bool) ([]byte, error) {
	encoded, err := d.inner.Decode(ctx, parallel)
	if err != nil {
		return nil, err
	}
	return d.decode(encoded)
}

func (d *fullDecoder) PartialDecode(ctx context.Context, ranges []ByteRange, parallel bool) ([][]byte, error) {
	decoded, err := d.Decode(ctx, parallel)
	if err != nil {
		return nil, err
	}
	return extractRanges(decoded, ranges)
}
