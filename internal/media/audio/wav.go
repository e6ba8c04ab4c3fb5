package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// SecondsPerWord sizes placeholder narration.
	SecondsPerWord = 0.3
	// MinSilenceSeconds is the shortest placeholder track.
	MinSilenceSeconds = 1.0
)

// Format describes PCM sample layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is 44.1 kHz stereo 16-bit.
var DefaultFormat = Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

func (f Format) blockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) byteRate() int {
	return f.SampleRate * f.blockAlign()
}

// SilenceForWords returns the placeholder length for a script of words words.
func SilenceForWords(words int) float64 {
	return math.Max(MinSilenceSeconds, float64(words)*SecondsPerWord)
}

// Silence renders seconds of silence as a WAV file.
func Silence(seconds float64, f Format) []byte {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitsPerSample <= 0 {
		f = DefaultFormat
	}
	if seconds < 0 {
		seconds = 0
	}
	frames := int(math.Round(seconds * float64(f.SampleRate)))
	dataSize := frames * f.blockAlign()

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.byteRate()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.blockAlign()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Duration walks the RIFF chunks of a WAV file and returns its length in seconds.
func Duration(data []byte) (float64, error) {
	if !IsWAV(data) {
		return 0, errors.New("not a wav file")
	}
	var byteRate uint32
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, errors.New("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, errors.New("data chunk before fmt chunk")
			}
			available := uint32(len(data) - body)
			if size > available {
				size = available
			}
			return float64(size) / float64(byteRate), nil
		}
		offset = body + int(size) + int(size%2)
	}
	return 0, fmt.Errorf("no data chunk in %d bytes", len(data))
}

// Concat joins WAV files that share a sample format into one file.
func Concat(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errors.New("no wav parts")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	var (
		format Format
		pcm    bytes.Buffer
	)
	for i, part := range parts {
		f, data, err := split(part)
		if err != nil {
			return nil, fmt.Errorf("wav part %d: %w", i, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, fmt.Errorf("wav part %d: format %+v differs from %+v", i, f, format)
		}
		pcm.Write(data)
	}
	out := Silence(0, format)
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+pcm.Len()))
	binary.LittleEndian.PutUint32(out[40:44], uint32(pcm.Len()))
	return append(out, pcm.Bytes()...), nil
}

// split returns the sample format and PCM payload of a WAV file.
func split(data []byte) (Format, []byte, error) {
	if !IsWAV(data) {
		return Format{}, nil, errors.New("not a wav file")
	}
	var (
		format  Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8
		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return Format{}, nil, errors.New("truncated fmt chunk")
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			end := len(data)
			if uint64(size) < uint64(end-body) {
				end = body + int(size)
			}
			return format, data[body:end], nil
		}
		offset = body + int(size) + int(size%2)
	}
	return Format{}, nil, errors.New("no data chunk")
}
