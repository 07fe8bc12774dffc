package sandbox

import "fmt"

// WrapCommand rewrites argv to run under the detected backend's isolation
// wrapper. It is a no-op (returns argv unchanged) under BackendPathOnly,
// where isolation is enforced entirely by Validator.Validate before a tool
// ever builds argv.
func WrapCommand(backend Backend, policy Policy, argv []string) ([]string, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("sandbox: empty command")
	}
	switch backend {
	case BackendBubblewrap:
		return wrapBubblewrap(policy, argv), nil
	case BackendSeatbelt:
		return wrapSeatbelt(policy, argv)
	default:
		return argv, nil
	}
}

// wrapBubblewrap prefixes argv with a minimal bwrap invocation: read-only
// system bind mounts, the workspace bound writable, /tmp as tmpfs, network
// kept (HTTP tools need it), and the child dies with its parent.
func wrapBubblewrap(policy Policy, argv []string) []string {
	wrapped := []string{
		"bwrap",
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/bin", "/bin",
		"--ro-bind", "/lib", "/lib",
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
		"--bind", policy.WorkspaceRoot, policy.WorkspaceRoot,
		"--chdir", policy.WorkspaceRoot,
		"--share-net",
		"--die-with-parent",
	}
	for _, dir := range policy.ProtectedDirs {
		wrapped = append(wrapped, "--tmpfs", dir)
	}
	wrapped = append(wrapped, argv...)
	return wrapped
}

// wrapSeatbelt renders a deny-by-default Seatbelt profile allowing system
// reads and workspace read+write, explicitly denying the protected
// subpaths, and prefixes argv with sandbox-exec.
func wrapSeatbelt(policy Policy, argv []string) ([]string, error) {
	profile := seatbeltProfile(policy)
	wrapped := []string{"sandbox-exec", "-p", profile}
	wrapped = append(wrapped, argv...)
	return wrapped, nil
}

func seatbeltProfile(policy Policy) string {
	profile := "(version 1)\n(deny default)\n"
	profile += "(allow process-fork process-exec)\n"
	profile += "(allow file-read* (subpath \"/usr\") (subpath \"/System\") (subpath \"/bin\") (subpath \"/lib\"))\n"
	profile += fmt.Sprintf("(allow file-read* file-write* (subpath %q))\n", policy.WorkspaceRoot)
	profile += "(allow network*)\n"
	for _, dir := range policy.ProtectedDirs {
		profile += fmt.Sprintf("(deny file-read* file-write* (subpath %q))\n", dir)
	}
	return profile
}
