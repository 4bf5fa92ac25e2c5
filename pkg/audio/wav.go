// Package audio decodes WAV files and converts PCM between sample rates and
// channel layouts. It feeds speech-to-text transcription, which wants mono
// float32 samples at a fixed rate regardless of how the source material was
// recorded.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotWAV is returned when the input does not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// Clip holds decoded little-endian int16 PCM together with its format.
type Clip struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Data) / (2 * c.Channels)
	return float64(frames) / float64(c.SampleRate)
}

// DecodeWAV reads a canonical WAV file and returns its PCM payload. Only
// uncompressed 16-bit PCM is supported; chunks other than "fmt " and "data"
// are skipped.
func DecodeWAV(r io.Reader) (Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Clip{}, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var clip Clip
	var haveFmt, haveData bool
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Clip{}, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Clip{}, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Clip{}, errors.New("audio: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return Clip{}, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			bits := binary.LittleEndian.Uint16(body[14:16])
			if bits != 16 {
				return Clip{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			if clip.Channels < 1 || clip.Channels > 2 {
				return Clip{}, fmt.Errorf("audio: unsupported channel count %d", clip.Channels)
			}
			if clip.SampleRate <= 0 {
				return Clip{}, fmt.Errorf("audio: invalid sample rate %d", clip.SampleRate)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, errors.New("audio: data chunk before fmt chunk")
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Clip{}, fmt.Errorf("audio: read data chunk: %w", err)
			}
			clip.Data = body
			haveData = true
		default:
			// Skip LIST, INFO and other metadata chunks. Chunk bodies are
			// word-aligned, so odd sizes carry a pad byte.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Clip{}, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
		if haveFmt && haveData {
			break
		}
	}

	if !haveFmt {
		return Clip{}, errors.New("audio: missing fmt chunk")
	}
	if !haveData {
		return Clip{}, errors.New("audio: missing data chunk")
	}
	if len(clip.Data)%2 != 0 {
		return Clip{}, errors.New("audio: odd byte count in PCM data")
	}
	return clip, nil
}
