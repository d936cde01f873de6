// Package mock provides a configurable [decode.Decoder] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/audio/decode"
)

var _ decode.Decoder = (*Decoder)(nil)

// Decoder returns Result or Err from every call and records the inputs.
type Decoder struct {
	mu sync.Mutex

	// Result is returned by Decode when Err is nil.
	Result *audio.DecodedAudio

	// Err is returned by Decode when non-nil.
	Err error

	// Block, when non-nil, is received from before Decode returns. Tests
	// close it to release pending calls.
	Block chan struct{}

	// Calls records the input passed to every Decode call.
	Calls [][]byte
}

// Decode implements [decode.Decoder].
func (d *Decoder) Decode(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, data)
	block, res, err := d.Block, d.Result, d.Err
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CallCount returns the number of Decode calls so far.
func (d *Decoder) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}
