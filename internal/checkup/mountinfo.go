package checkup

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

type mountinfoEntry struct {
	device     string // major:minor
	root       string // path within the filesystem
	mountpoint string
}

// resolveBindBacking resolves where a bind mount at target actually lives on
// its backing filesystem. Returns "" when the target is not in the mount
// table or the backing filesystem cannot be located.
func resolveBindBacking(mountinfoPath, target string) (string, error) {
	entries, err := parseMountinfo(mountinfoPath)
	if err != nil {
		return "", err
	}

	target = filepath.Clean(target)
	var bind *mountinfoEntry
	for i := range entries {
		if entries[i].mountpoint == target {
			bind = &entries[i]
			break
		}
	}
	if bind == nil {
		return "", nil
	}
	if bind.root == "/" {
		// A whole-filesystem mount, not a bind of a subtree.
		return bind.mountpoint, nil
	}

	// Locate where the same filesystem is mounted at its own root; the bind
	// source is that mountpoint plus the bind's root path.
	for _, e := range entries {
		if e.device == bind.device && e.root == "/" {
			return filepath.Join(e.mountpoint, bind.root), nil
		}
	}
	return bind.root, nil
}

func parseMountinfo(path string) ([]mountinfoEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []mountinfoEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// ID PARENT MAJ:MIN ROOT MOUNTPOINT ...
		if len(fields) < 5 {
			continue
		}
		entries = append(entries, mountinfoEntry{
			device:     fields[2],
			root:       unescapeMountPath(fields[3]),
			mountpoint: unescapeMountPath(fields[4]),
		})
	}
	return entries, scanner.Err()
}

// unescapeMountPath decodes the octal escapes the kernel uses for spaces,
// tabs and newlines in mount paths.
func unescapeMountPath(s string) string {
	replacer := strings.NewReplacer(
		`\040`, " ",
		`\011`, "\t",
		`\012`, "\n",
		`\134`, `\`,
	)
	return replacer.Replace(s)
}
