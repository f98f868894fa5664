package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var ErrInvalidPCM = errors.New("invalid s16le pcm")

// DefaultSilenceDBFS is the level below which decoded speech is reported as
// near-silent.
const DefaultSilenceDBFS = -65.0

// PCMStats describes a headerless signed 16-bit little-endian mono stream.
type PCMStats struct {
	Samples  int64
	Duration time.Duration
	RMSdBFS  float64
	PeakdBFS float64
}

// Silent applies the same gate as the recorder's silence check: RMS at or
// below the threshold and peak no more than 6 dB above it.
func (s PCMStats) Silent(thresholdDBFS float64) bool {
	if s.Samples == 0 {
		return true
	}
	if math.IsInf(s.RMSdBFS, -1) && math.IsInf(s.PeakdBFS, -1) {
		return true
	}
	return s.RMSdBFS <= thresholdDBFS && s.PeakdBFS <= thresholdDBFS+6
}

func InspectPCM(path string, sampleRate int) (PCMStats, error) {
	if sampleRate <= 0 {
		return PCMStats{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	f, err := os.Open(path)
	if err != nil {
		return PCMStats{}, fmt.Errorf("open pcm: %w", err)
	}
	defer f.Close()

	return measurePCM(bufio.NewReaderSize(f, 64*1024), sampleRate)
}

func measurePCM(r io.Reader, sampleRate int) (PCMStats, error) {
	var (
		peak       float64
		sumSquares float64
		samples    int64
		frame      [2]byte
	)

	for {
		n, err := io.ReadFull(r, frame[:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) && n == 1 {
				return PCMStats{}, fmt.Errorf("%w: odd byte count", ErrInvalidPCM)
			}
			return PCMStats{}, fmt.Errorf("read pcm: %w", err)
		}

		value := float64(int16(binary.LittleEndian.Uint16(frame[:]))) / 32768.0
		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
		samples++
	}

	stats := PCMStats{
		Samples:  samples,
		Duration: time.Duration(samples) * time.Second / time.Duration(sampleRate),
		RMSdBFS:  math.Inf(-1),
		PeakdBFS: math.Inf(-1),
	}
	if samples == 0 {
		return stats, nil
	}

	stats.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples)))
	stats.PeakdBFS = amplitudeToDBFS(peak)
	return stats, nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
