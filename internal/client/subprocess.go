package client

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/redubline/api/internal/classify"
)

// unsafeBasename matches shell metacharacters that must never appear
// in a path argument's basename, even though every subprocess here is
// invoked with an explicit argument vector and no shell is ever spawned.
var unsafeBasename = regexp.MustCompile(`[;&|$` + "`" + `<>\\]`)

// ValidatePathArg rejects null bytes, ".." traversal segments, and
// shell metacharacters in the basename of a path that will be passed
// to a subprocess, per spec.md §6's subprocess boundary.
func ValidatePathArg(path string) error {
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("subprocess: path contains a null byte")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("subprocess: path contains a traversal segment: %q", path)
		}
	}
	if unsafeBasename.MatchString(filepath.Base(path)) {
		return fmt.Errorf("subprocess: unsafe characters in basename: %q", filepath.Base(path))
	}
	return nil
}

// runSubprocess invokes name with an explicit argument vector under a
// wall-clock timeout, never through a shell. On timeout the process is
// killed and the call fails with a fatal-subprocess classification.
func runSubprocess(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, classify.New(classify.KindFatalSubprocess, "runSubprocess", fmt.Errorf("%s timed out after %s", name, timeout))
	}
	if err != nil {
		return nil, classify.New(classify.KindFatalSubprocess, "runSubprocess", fmt.Errorf("%s failed: %w; stderr: %s", name, err, truncate(stderr.Bytes())))
	}
	return stdout.Bytes(), nil
}
