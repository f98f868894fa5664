//go:build unix

package convert

import "golang.org/x/sys/unix"

func dirWritable(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.X_OK)
}
