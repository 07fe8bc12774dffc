package sandbox

import (
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// Backend names the strongest isolation primitive detected on this host.
type Backend string

const (
	BackendLandlock  Backend = "landlock"  // Linux 5.13+ filesystem-restriction LSM
	BackendBubblewrap Backend = "bubblewrap" // Linux user-namespace sandbox utility
	BackendSeatbelt  Backend = "seatbelt"  // macOS sandbox-exec profiles
	BackendPathOnly  Backend = "path_validation"
)

var (
	detectOnce sync.Once
	detected   Backend
)

// DetectBackend chooses the strongest available sandboxing backend once per
// process and caches the result in a lock-free cell (§5: "Sandbox policy:
// read-only after init"). Grounded on the multi-backend selection shape of
// internal/tools/sandbox/executor.go, replacing its VM/container backends
// (Docker/Firecracker/Daytona — a different isolation tier, see DESIGN.md)
// with the OS-capability backends named in §4.B.
func DetectBackend() Backend {
	detectOnce.Do(func() {
		detected = detect()
	})
	return detected
}

func detect() Backend {
	switch runtime.GOOS {
	case "linux":
		if landlockAvailable() {
			return BackendLandlock
		}
		if _, err := exec.LookPath("bwrap"); err == nil {
			return BackendBubblewrap
		}
	case "darwin":
		if _, err := exec.LookPath("sandbox-exec"); err == nil {
			return BackendSeatbelt
		}
	}
	return BackendPathOnly
}

// landlockAvailable probes for Landlock support via the ABI version sysfs
// node exposed on kernels that compiled it in; the actual ruleset-creation
// syscalls are attempted lazily by the caller that applies lockdown.
func landlockAvailable() bool {
	_, err := os.Stat("/sys/kernel/security/landlock")
	return err == nil
}
