// Package checkup verifies the storage topology a scope relies on: the
// persistent store is mounted and writable, and cold cache sets are bind
// mounts resolving to the expected backing paths with sane ownership.
package checkup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/model"
)

// Severity levels for findings.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Finding represents a detected issue. Error-level findings carry a stable
// error class code.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
	Code        string `json:"code,omitempty"`
}

// Result contains validation results. OK is false only when an error-level
// finding is present; warnings (e.g. a cold cache missing on first run) do
// not fail validation.
type Result struct {
	OK       bool      `json:"ok"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError {
		r.OK = false
	}
}

// Err folds the error findings into a single classified error, nil when
// validation passed. The class comes from the first error finding.
func (r *Result) Err() error {
	if r.OK {
		return nil
	}
	var code string
	var msgs []string
	for _, f := range r.Findings {
		if f.Severity != SeverityError {
			continue
		}
		if code == "" {
			code = f.Code
		}
		msgs = append(msgs, f.Description)
	}
	cls := &errclass.SyncError{Code: code}
	if code == "" {
		cls = errclass.ErrConfigInvalid
	}
	return cls.WithMessage(strings.Join(msgs, "; "))
}

// Checker performs per-scope storage checks.
type Checker struct {
	cfg   *config.Config
	scope model.Scope

	mountinfoPath string
	mountpoints   func() (map[string]bool, error)
	ownerUID      func(path string) (int, error)
}

// NewChecker creates a checker for one scope.
func NewChecker(cfg *config.Config, scope model.Scope) *Checker {
	return &Checker{
		cfg:           cfg,
		scope:         scope,
		mountinfoPath: "/proc/self/mountinfo",
		mountpoints:   listMountpoints,
		ownerUID:      pathOwnerUID,
	}
}

// Check runs all storage checks for the scope.
func (c *Checker) Check() (*Result, error) {
	result := &Result{OK: true}

	c.checkPersistentRoot(result)
	c.checkWritable(result)
	c.checkColdSets(result)

	return result, nil
}

func (c *Checker) checkPersistentRoot(result *Result) {
	root := c.cfg.Scope(c.scope).PersistentRoot

	info, err := os.Stat(root)
	if err != nil {
		result.add(Finding{
			Category:    "mount",
			Description: fmt.Sprintf("persistent root missing: %v; mount the backing store or run 'mkdir -p %s'", err, root),
			Severity:    SeverityError,
			Path:        root,
			Code:        errclass.ErrNotMounted.Code,
		})
		return
	}
	if !info.IsDir() {
		result.add(Finding{
			Category:    "mount",
			Description: "persistent root is not a directory",
			Severity:    SeverityError,
			Path:        root,
			Code:        errclass.ErrNotMounted.Code,
		})
		return
	}

	mounted, err := c.isMountPoint(root)
	if err != nil {
		result.add(Finding{
			Category:    "mount",
			Description: fmt.Sprintf("cannot inspect mount table: %v", err),
			Severity:    SeverityWarning,
			Path:        root,
		})
		return
	}
	if !mounted {
		// A plain directory here means the backing store never got mounted
		// and writes would land on the root filesystem.
		result.add(Finding{
			Category:    "mount",
			Description: fmt.Sprintf("persistent root is a plain directory, not a mount point; run 'mount %s'", root),
			Severity:    SeverityError,
			Path:        root,
			Code:        errclass.ErrNotMounted.Code,
		})
	}
}

func (c *Checker) checkWritable(result *Result) {
	target := c.cfg.Scope(c.scope).PersistentRoot
	if err := probeWritable(target); err != nil {
		result.add(Finding{
			Category:    "write",
			Description: fmt.Sprintf("write target not writable: %v; check ownership with 'ls -ld %s'", err, target),
			Severity:    SeverityError,
			Path:        target,
			Code:        errclass.ErrNotWritable.Code,
		})
	}
}

func (c *Checker) checkColdSets(result *Result) {
	ownerUID := c.cfg.Scope(c.scope).OwnerUID

	for _, set := range c.cfg.ColdSets(c.scope) {
		if _, err := os.Stat(set.RuntimePath); os.IsNotExist(err) {
			// First run: the bind mount has simply not been set up yet.
			result.add(Finding{
				Category:    "cold",
				Description: fmt.Sprintf("cold cache %q not present yet", set.Name),
				Severity:    SeverityWarning,
				Path:        set.RuntimePath,
			})
			continue
		}

		mounted, err := c.isMountPoint(set.RuntimePath)
		if err == nil && !mounted {
			result.add(Finding{
				Category:    "cold",
				Description: fmt.Sprintf("cold cache %q is not a bind mount; it would be wiped with the runtime tier", set.Name),
				Severity:    SeverityError,
				Path:        set.RuntimePath,
				Code:        errclass.ErrColdDetached.Code,
			})
			continue
		}

		if set.PersistentPath != "" {
			backing, err := resolveBindBacking(c.mountinfoPath, set.RuntimePath)
			if err == nil && backing != "" && backing != set.PersistentPath {
				result.add(Finding{
					Category:    "cold",
					Description: fmt.Sprintf("cold cache %q resolves to %s, expected %s", set.Name, backing, set.PersistentPath),
					Severity:    SeverityError,
					Path:        set.RuntimePath,
					Code:        errclass.ErrColdDetached.Code,
				})
			}
		}

		uid, err := c.ownerUID(set.RuntimePath)
		if err != nil {
			result.add(Finding{
				Category:    "cold",
				Description: fmt.Sprintf("cannot stat cold cache %q: %v", set.Name, err),
				Severity:    SeverityWarning,
				Path:        set.RuntimePath,
			})
			continue
		}
		if uid == 0 || uid != ownerUID {
			// Wrong ownership silently breaks later syncs, so it is an error
			// even though the mount itself is fine.
			result.add(Finding{
				Category:    "cold",
				Description: fmt.Sprintf("cold cache %q owned by uid %d, expected %d; run 'chown -R %d %s'", set.Name, uid, ownerUID, ownerUID, set.RuntimePath),
				Severity:    SeverityError,
				Path:        set.RuntimePath,
				Code:        errclass.ErrColdOwnership.Code,
			})
		}
	}
}

// isMountPoint checks the mount table first, then falls back to comparing
// the device of the path against its parent.
func (c *Checker) isMountPoint(path string) (bool, error) {
	mounts, err := c.mountpoints()
	if err == nil {
		if mounts[filepath.Clean(path)] {
			return true, nil
		}
	}
	return devDiffers(path)
}

func listMountpoints() (map[string]bool, error) {
	parts, err := disk.Partitions(true)
	if err != nil {
		return nil, err
	}
	mounts := make(map[string]bool, len(parts))
	for _, p := range parts {
		mounts[p.Mountpoint] = true
	}
	return mounts, nil
}

func devDiffers(path string) (bool, error) {
	var st, parent syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return false, err
	}
	if err := syscall.Stat(filepath.Dir(path), &parent); err != nil {
		return false, err
	}
	return st.Dev != parent.Dev, nil
}

// probeWritable verifies writability with a create+delete probe rather than
// permission bits, which lie for read-only mounts and ACLs.
func probeWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".tiersync-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

func pathOwnerUID(path string) (int, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return 0, err
	}
	return int(st.Uid), nil
}
