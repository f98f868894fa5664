package tools

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fmueller/silkconv/internal/platform"
	"go.uber.org/zap"
)

var ErrToolNotFound = errors.New("tool not found")

const (
	DefaultDecoder    = "silk_v3_decoder"
	DefaultEncoder    = "silk_v3_encoder"
	DefaultTranscoder = "ffmpeg"
)

// NotFoundError reports every location that was tried for a tool.
type NotFoundError struct {
	Tool  string
	Tried []string
	Err   error
}

func (e *NotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("%s not found", e.Tool)
	}
	msg := fmt.Sprintf("%s not found (tried %s)", e.Tool, strings.Join(e.Tried, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Locate resolves toolName inside baseDir using the host's executable naming
// convention.
func Locate(baseDir, toolName string) (string, error) {
	return locateFor(runtime.GOOS, baseDir, toolName)
}

func locateFor(goos, baseDir, toolName string) (string, error) {
	if strings.TrimSpace(toolName) == "" {
		return "", errors.New("tool name is required")
	}

	path := filepath.Join(baseDir, platform.ExecutableName(goos, toolName))
	if err := ensureExecutable(goos, path); err != nil {
		return "", &NotFoundError{Tool: toolName, Tried: []string{path}, Err: err}
	}
	return path, nil
}

// Finder resolves tools from, in order: an explicit override path, BaseDir
// (exclusive when set), the directories around the running binary, and
// finally PATH when SearchPath is enabled.
type Finder struct {
	BaseDir    string
	Overrides  map[string]string
	SearchPath bool
	Logger     *zap.Logger

	// Self is the running binary; empty means os.Executable.
	Self string
}

func (f Finder) Find(name string) (string, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(f.Overrides[name]); override != "" {
		if err := ensureExecutable(runtime.GOOS, override); err != nil {
			return "", &NotFoundError{Tool: name, Tried: []string{override}, Err: err}
		}
		logger.Debug("tool resolved from override", zap.String("tool", name), zap.String("path", override))
		return override, nil
	}

	if f.BaseDir != "" {
		path, err := Locate(f.BaseDir, name)
		if err != nil {
			return "", err
		}
		logger.Debug("tool resolved", zap.String("tool", name), zap.String("path", path))
		return path, nil
	}

	var tried []string
	for _, dir := range f.candidateDirs() {
		path, err := Locate(dir, name)
		if err == nil {
			logger.Debug("tool resolved", zap.String("tool", name), zap.String("path", path))
			return path, nil
		}
		tried = append(tried, filepath.Join(dir, platform.ExecutableName(runtime.GOOS, name)))
	}

	if f.SearchPath {
		path, err := exec.LookPath(name)
		if err == nil {
			logger.Debug("tool resolved from PATH", zap.String("tool", name), zap.String("path", path))
			return path, nil
		}
		tried = append(tried, "PATH")
	}

	return "", &NotFoundError{Tool: name, Tried: tried}
}

func (f Finder) candidateDirs() []string {
	self := f.Self
	if self == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil
		}
		self = exe
	}
	return platform.ToolDirCandidates(self)
}

// OverrideEnv is the environment variable that pins the path of a tool role,
// e.g. SILKCONV_DECODER_PATH.
func OverrideEnv(role string) string {
	return "SILKCONV_" + strings.ToUpper(role) + "_PATH"
}

func ensureExecutable(goos, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if goos != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
