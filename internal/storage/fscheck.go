package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/disk"
)

// remoteFilesystems are the mounts SQLite cannot lock reliably. Names
// follow gopsutil's statfs table on Linux and Fstypename on darwin.
var remoteFilesystems = map[string]struct{}{
	"afpfs":  {},
	"afs":    {},
	"ceph":   {},
	"cifs":   {},
	"coda":   {},
	"nfs":    {},
	"smb":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// fsTypeFunc reports the filesystem type holding path. An empty type
// means the platform could not name it.
type fsTypeFunc func(path string) (string, error)

func statFilesystem(path string) (string, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return "", err
	}
	return usage.Fstype, nil
}

// requireLocalFilesystem refuses to open the journal on a network mount.
func requireLocalFilesystem(path string) error {
	return checkFilesystem(path, statFilesystem)
}

func checkFilesystem(path string, fsType fsTypeFunc) error {
	if path == "" {
		return fmt.Errorf("journal path is empty")
	}

	existing, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	kind, err := fsType(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if kind == "" {
		return nil
	}

	if isRemoteFilesystem(kind) {
		return fmt.Errorf(
			"journal path %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Set state.path to a local file",
			path,
			kind,
		)
	}
	return nil
}

// existingAncestor walks up from path to the first entry that exists, so a
// journal that has not been created yet is checked where it will live.
func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for candidate := abs; ; {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", abs)
		}
		candidate = parent
	}
}

func isRemoteFilesystem(kind string) bool {
	_, ok := remoteFilesystems[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}
