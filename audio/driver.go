// Package audio drives playback timing from the audio callback. The
// driver opens a silent stereo stream; the amount of audio the device
// pulls per Read call is the authoritative measure of elapsed time.
package audio

import (
	"github.com/ebitengine/oto/v3"
)

const (
	channelCount = 2
	bitDepth     = 2 // 16-bit samples
)

// TickFunc receives the number of frames just rendered. It runs on the
// audio goroutine and must not block.
type TickFunc func(numSamples int)

// Driver owns the audio context and the silent stream feeding the tick.
type Driver struct {
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int
}

// NewDriver opens the audio device and blocks until it is ready.
func NewDriver(sampleRate int, tick TickFunc) (*Driver, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	d := &Driver{ctx: ctx, sampleRate: sampleRate}
	d.player = ctx.NewPlayer(&tickReader{tick: tick})
	return d, nil
}

func (d *Driver) SampleRate() int { return d.sampleRate }

// Start begins pulling audio, which begins ticking.
func (d *Driver) Start() { d.player.Play() }

// Close stops the stream. The context itself has no close; it lives for
// the process.
func (d *Driver) Close() error {
	return d.player.Close()
}

// tickReader fills the buffer with silence and reports the frame count.
// The zero fill keeps the device fed at a steady rate without rendering.
type tickReader struct {
	tick TickFunc
}

func (r *tickReader) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	if r.tick != nil {
		r.tick(len(buf) / (channelCount * bitDepth))
	}
	return len(buf), nil
}
