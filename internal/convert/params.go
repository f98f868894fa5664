package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Direction int

const (
	Decode Direction = iota
	Encode
)

func (d Direction) String() string {
	if d == Encode {
		return "encode"
	}
	return "decode"
}

type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatSilk Format = "silk"
	FormatPCM  Format = "pcm"
)

func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")))
	switch f {
	case FormatMP3, FormatWAV, FormatOGG, FormatSilk, FormatPCM:
		return f, nil
	default:
		return "", invalidParameter("format", "unknown format %q", value)
	}
}

// OutputFormats lists the formats a direction can produce.
func OutputFormats(d Direction) []Format {
	if d == Encode {
		return []Format{FormatSilk}
	}
	return []Format{FormatMP3, FormatWAV, FormatOGG}
}

func formatAllowed(d Direction, f Format) bool {
	for _, allowed := range OutputFormats(d) {
		if allowed == f {
			return true
		}
	}
	return false
}

const (
	MinComplexity = 0
	MaxComplexity = 2
)

// Conventional voice-message encoder settings.
const (
	DefaultSampleRate   = 24000
	DefaultBitrate      = 25000
	DefaultPacketLength = 20
	DefaultComplexity   = 2
)

// Request is the raw job request as supplied by a front end. Numeric values
// arrive as text and are parsed by Validate.
type Request struct {
	InputPath    string
	OutputDir    string
	Direction    Direction
	Format       string
	SampleRate   string
	Bitrate      string
	PacketLength string
	Complexity   string
	VendorCompat bool
	Batch        bool
}

// Params is the validated, immutable parameter set for one run. Encode-only
// fields are zero for Decode.
type Params struct {
	Direction    Direction
	Format       Format
	SampleRate   int
	Bitrate      int
	PacketLength int
	Complexity   int
	VendorCompat bool
	Batch        bool
}

// Validate checks a request and produces the parameter set for a run. It
// spawns nothing and writes nothing.
func Validate(req Request) (Params, error) {
	params := Params{Direction: req.Direction, VendorCompat: req.VendorCompat && req.Direction == Encode}

	format, err := ParseFormat(req.Format)
	if err != nil {
		return Params{}, err
	}
	if !formatAllowed(req.Direction, format) {
		return Params{}, &ValidationError{
			Kind:    ErrIncompatibleFormat,
			Field:   "format",
			Message: fmt.Sprintf("%s cannot produce %s (allowed: %s)", req.Direction, format, joinFormats(OutputFormats(req.Direction))),
		}
	}
	params.Format = format

	if params.SampleRate, err = parsePositive("sample rate", req.SampleRate); err != nil {
		return Params{}, err
	}

	if req.Direction == Encode {
		if params.Bitrate, err = parsePositive("bitrate", req.Bitrate); err != nil {
			return Params{}, err
		}
		if params.PacketLength, err = parsePositive("packet length", req.PacketLength); err != nil {
			return Params{}, err
		}
		if params.Complexity, err = parseComplexity(req.Complexity); err != nil {
			return Params{}, err
		}
	}

	if strings.TrimSpace(req.InputPath) == "" {
		return Params{}, invalidParameter("input", "input path is required")
	}
	info, err := os.Stat(req.InputPath)
	if err != nil {
		return Params{}, invalidParameter("input", "cannot access %s: %v", req.InputPath, err)
	}
	if req.Batch && !info.IsDir() {
		return Params{}, invalidParameter("input", "batch mode requires a directory, got file %s", req.InputPath)
	}
	params.Batch = req.Batch || info.IsDir()

	if params.Batch && strings.TrimSpace(req.OutputDir) == "" {
		return Params{}, &ValidationError{Kind: ErrInvalidOutputDirectory, Field: "output dir", Message: "an output directory is required in batch mode"}
	}
	if strings.TrimSpace(req.OutputDir) != "" {
		if err := checkOutputDir(req.OutputDir); err != nil {
			return Params{}, err
		}
	}

	return params, nil
}

func parsePositive(field, raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidParameter(field, "%q is not an integer", raw)
	}
	if value <= 0 {
		return 0, invalidParameter(field, "must be positive, got %d", value)
	}
	return value, nil
}

func parseComplexity(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidParameter("complexity", "%q is not an integer", raw)
	}
	if value < MinComplexity || value > MaxComplexity {
		return 0, invalidParameter("complexity", "must be between %d and %d, got %d", MinComplexity, MaxComplexity, value)
	}
	return value, nil
}

func checkOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ValidationError{Kind: ErrInvalidOutputDirectory, Field: "output dir", Message: fmt.Sprintf("%s does not exist", dir)}
		}
		return &ValidationError{Kind: ErrInvalidOutputDirectory, Field: "output dir", Message: err.Error()}
	}
	if !info.IsDir() {
		return &ValidationError{Kind: ErrInvalidOutputDirectory, Field: "output dir", Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	if err := dirWritable(filepath.Clean(dir)); err != nil {
		return &ValidationError{Kind: ErrInvalidOutputDirectory, Field: "output dir", Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	return nil
}

func joinFormats(formats []Format) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
