package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutableNameAddsSuffixOnWindows(t *testing.T) {
	t.Parallel()

	require.Equal(t, "silk_v3_decoder.exe", ExecutableName("windows", "silk_v3_decoder"))
	require.Equal(t, "ffmpeg.EXE", ExecutableName("windows", "ffmpeg.EXE"))
}

func TestExecutableNameUnchangedOnPOSIX(t *testing.T) {
	t.Parallel()

	require.Equal(t, "silk_v3_decoder", ExecutableName("linux", "silk_v3_decoder"))
	require.Equal(t, "ffmpeg", ExecutableName("darwin", "ffmpeg"))
}

func TestToolDirCandidates(t *testing.T) {
	t.Parallel()

	bin := filepath.Join("/opt", "silkconv", "bin", "silkconv")
	require.Equal(t, []string{
		filepath.Join("/opt", "silkconv", "bin"),
		filepath.Join("/opt", "silkconv", "libexec", "silkconv"),
		filepath.Join("/opt", "silkconv", "bin", "libexec", "silkconv"),
	}, ToolDirCandidates(bin))
}

func TestDefaultConfigPathForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	path, err := DefaultConfigPathFor("linux", "/home/dev", "/tmp/xdg-config", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdg-config", "silkconv", "config.yaml"), path)
}

func TestDefaultConfigPathForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	path, err := DefaultConfigPathFor("linux", "/home/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/dev", ".config", "silkconv", "config.yaml"), path)
}

func TestDefaultConfigPathForMacOS(t *testing.T) {
	t.Parallel()

	path, err := DefaultConfigPathFor("darwin", "/Users/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/Users/dev", "Library", "Application Support", "silkconv", "config.yaml"), path)
}

func TestDefaultConfigPathForWindowsPrefersAppData(t *testing.T) {
	t.Parallel()

	path, err := DefaultConfigPathFor("windows", "C:/Users/dev", "", "C:/Users/dev/AppData/Roaming")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("C:/Users/dev/AppData/Roaming", "silkconv", "config.yaml"), path)
}

func TestDefaultConfigPathForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DefaultConfigPathFor("plan9", "/usr/dev", "", "")
	require.Error(t, err)
}

func TestDefaultConfigPathRequiresHome(t *testing.T) {
	t.Parallel()

	_, err := DefaultConfigPathFor("linux", "", "", "")
	require.Error(t, err)
}

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amd64", NormalizeArch("x86_64"))
	require.Equal(t, "arm64", NormalizeArch("aarch64"))
	require.Equal(t, "riscv64", NormalizeArch("riscv64"))
	require.NotEmpty(t, CurrentRuntime().OS)
}
