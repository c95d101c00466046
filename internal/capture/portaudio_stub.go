//go:build !portaudio

package capture

import "fmt"

// NewPortAudio reports ErrNotAvailable; build with -tags portaudio to
// record from the default input device.
func NewPortAudio(Options) (Source, error) {
	return nil, fmt.Errorf("%w: built without portaudio support", ErrNotAvailable)
}
