package spawner

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
)

// Exec runs commands through the host shell, the way Ninja itself does
// (sh -c on POSIX, cmd /c on Windows), so rules may use shell
// redirection, pipes, and globbing.
type Exec struct{}

// Run implements Spawner.
func (Exec) Run(ctx context.Context, dir, command string) Result {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}
	return res
}
