package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	riffHeaderLen  = 12
	chunkHeaderLen = 8
)

var (
	// ErrNotWAV indicates a file without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")
	// ErrWAVFormatMismatch indicates chunks whose sample formats differ.
	ErrWAVFormatMismatch = errors.New("WAV chunks have different sample formats")
	// ErrWAVNoData indicates a WAVE file without a data chunk.
	ErrWAVNoData = errors.New("WAV file has no data chunk")
)

// wavFile is the parsed skeleton of a PCM WAVE file: its fmt chunk payload and
// its raw sample data.
type wavFile struct {
	format  []byte
	samples []byte
}

// parseWAV walks the RIFF chunk list and extracts the fmt and data payloads.
func parseWAV(data []byte) (*wavFile, error) {
	if len(data) < riffHeaderLen ||
		!bytes.Equal(data[0:4], []byte("RIFF")) ||
		!bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, ErrNotWAV
	}

	var parsed wavFile

	offset := riffHeaderLen
	for offset+chunkHeaderLen <= len(data) {
		chunkID := data[offset : offset+4]
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderLen

		if body+chunkLen > len(data) {
			return nil, fmt.Errorf("%w: truncated chunk %q", ErrNotWAV, chunkID)
		}

		switch string(chunkID) {
		case "fmt ":
			parsed.format = data[body : body+chunkLen]
		case "data":
			parsed.samples = data[body : body+chunkLen]
		}

		// Chunks are word-aligned; odd lengths carry one pad byte.
		offset = body + chunkLen + chunkLen%2
	}

	if parsed.format == nil || parsed.samples == nil {
		return nil, ErrWAVNoData
	}

	return &parsed, nil
}

// concatWAV recombines parsed WAVE files into a single file, requiring every
// part to share one sample format.
func concatWAV(parts []*wavFile) ([]byte, error) {
	totalSamples := 0

	for _, part := range parts {
		if !bytes.Equal(part.format, parts[0].format) {
			return nil, ErrWAVFormatMismatch
		}

		totalSamples += len(part.samples)
	}

	format := parts[0].format
	dataLen := totalSamples
	riffLen := 4 + chunkHeaderLen + len(format) + chunkHeaderLen + dataLen

	out := make([]byte, 0, riffHeaderLen+riffLen)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(riffLen))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(format)))
	out = append(out, format...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataLen))

	for _, part := range parts {
		out = append(out, part.samples...)
	}

	return out, nil
}
