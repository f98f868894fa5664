package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CollisionPolicy decides what happens when a destination name is already
// taken, either on disk or by an earlier file of the same batch.
type CollisionPolicy int

const (
	// CollisionOverwrite replaces existing destinations; the transcoder runs
	// with -y.
	CollisionOverwrite CollisionPolicy = iota
	// CollisionRename picks "<base> - dupN.<ext>" for taken destinations.
	CollisionRename
)

func (c CollisionPolicy) String() string {
	if c == CollisionRename {
		return "rename"
	}
	return "overwrite"
}

func ParseCollisionPolicy(value string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "overwrite":
		return CollisionOverwrite, nil
	case "rename":
		return CollisionRename, nil
	default:
		return CollisionOverwrite, invalidParameter("collision", "unknown policy %q (want overwrite|rename)", value)
	}
}

func sourceBaseName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func destinationPath(outDir, source string, format Format) string {
	return filepath.Join(outDir, sourceBaseName(source)+"."+string(format))
}

// namer assigns destination and intermediate paths for every file of a batch
// before any job starts, so the result does not depend on scheduling.
type namer struct {
	outDir     string
	format     Format
	policy     CollisionPolicy
	concurrent bool
	exists     func(path string) bool
	newID      func() string

	sources map[string]bool
	claimed map[string]string
}

func newNamer(outDir string, format Format, policy CollisionPolicy, concurrent bool, sources []string) *namer {
	n := &namer{
		outDir:     outDir,
		format:     format,
		policy:     policy,
		concurrent: concurrent,
		exists:     pathExists,
		newID:      func() string { return uuid.NewString()[:8] },
		sources:    make(map[string]bool, len(sources)),
		claimed:    make(map[string]string, len(sources)),
	}
	for _, src := range sources {
		n.sources[filepath.Clean(src)] = true
	}
	return n
}

func (n *namer) paths(source string) jobPaths {
	dest := n.destination(source)
	return jobPaths{
		Source:       source,
		Intermediate: n.intermediate(source, dest),
		Dest:         dest,
	}
}

func (n *namer) destination(source string) string {
	requested := destinationPath(n.outDir, source, n.format)
	if n.available(source, requested) {
		n.claimed[requested] = source
		return requested
	}

	dir := filepath.Dir(requested)
	stem := sourceBaseName(requested)
	ext := filepath.Ext(requested)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, counter, ext))
		owner, taken := n.claimed[candidate]
		if n.available(source, candidate) && !n.exists(candidate) && (!taken || owner == source) {
			n.claimed[candidate] = source
			return candidate
		}
	}
}

// available reports whether source may write to path under the policy. A
// file never overwrites itself or another input of the batch.
func (n *namer) available(source, path string) bool {
	clean := filepath.Clean(path)
	if clean == filepath.Clean(source) || n.sources[clean] {
		return false
	}
	if n.policy == CollisionOverwrite {
		return true
	}
	if owner, ok := n.claimed[path]; ok && owner != source {
		return false
	}
	return !n.exists(path)
}

// intermediate returns <out>/<base>.pcm unless that name could clash with a
// concurrent job, an input, the destination, or a file already on disk.
func (n *namer) intermediate(source, dest string) string {
	base := sourceBaseName(source)
	path := filepath.Join(n.outDir, base+"."+string(FormatPCM))
	clean := filepath.Clean(path)
	if !n.concurrent && !n.sources[clean] && clean != filepath.Clean(dest) && !n.exists(path) {
		return path
	}
	return filepath.Join(n.outDir, base+"."+n.newID()+"."+string(FormatPCM))
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
