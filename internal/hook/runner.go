// Package hook invokes the shell commands a Pool configures (cmd_new,
// cmd_delete, cmd_livecheck, cmd_release, cmd_list) under the fixed
// environment-variable contract of spec.md §4.2 and §6. Grounded on the
// teacher's internal/process package for exec.Cmd/log-file handling,
// adapted from separate stdout/stderr files to a single combined log, and on
// resallocserver/manager.py:run_command for the exact capture/trim state
// machine.
package hook

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/giantswarm/resallocd/internal/fileutil"
)

// TrimMarker is the literal byte sequence appended to a captured stdout
// prefix when the byte budget is exceeded in non-secure-lines mode.
const TrimMarker = "<< trimmed >>\n"

// Env is the environment-variable contract a hook invocation is run under.
// Every field is serialized to its RESALLOC_* variable; absent values
// become the literal string "None" (ResourceData is the exception: it is
// omitted entirely, not set to "None", when Data is nil).
type Env struct {
	ID         int64
	Name       string
	PoolID     string
	IDInPool   *int
	Data       []byte
}

func (e Env) toOSEnv() []string {
	idInPool := "None"
	if e.IDInPool != nil {
		idInPool = strconv.Itoa(*e.IDInPool)
	}
	env := append(os.Environ(),
		"RESALLOC_ID="+strconv.FormatInt(e.ID, 10),
		"RESALLOC_NAME="+valueOrNone(e.Name),
		"RESALLOC_POOL_ID="+valueOrNone(e.PoolID),
		"RESALLOC_ID_IN_POOL="+idInPool,
	)
	if e.Data != nil {
		env = append(env, "RESALLOC_RESOURCE_DATA="+base64.StdEncoding.EncodeToString(e.Data))
	}
	return env
}

func valueOrNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// Kind is the hook log suffix, one of spec.md §6's {alloc, terminate,
// release, watch, list}.
type Kind string

const (
	KindAlloc     Kind = "alloc"
	KindTerminate Kind = "terminate"
	KindRelease   Kind = "release"
	KindWatch     Kind = "watch"
	KindList      Kind = "list"
)

// Result is the outcome of a hook invocation. Stdout is populated only when
// Run was called with a non-zero CaptureBytes budget.
type Result struct {
	Status int
	Stdout []byte
}

// Options configures a single hook invocation.
type Options struct {
	LogDir       string
	ResourceID   int64 // used for the zero-padded log filename; 0 for unknown-resource cleanup
	Kind         Kind
	Command      string
	Env          Env
	CaptureBytes int  // 0 means no capture
	SecureLines  bool // see spec.md §4.2 mode 2
}

// Run executes a hook command under sh -c, tee-ing combined stdout+stderr
// into <LogDir>/hooks/<NNNNNN>_<Kind>. The runner itself never fails on a
// non-zero exit: that is the hook's own failure signal, surfaced through
// Result.Status. Run only returns an error when the hook could not be
// started or the log file could not be created/written — conditions the
// caller cannot recover from by inspecting Status.
func Run(ctx context.Context, opt Options) (Result, error) {
	logPath := fmt.Sprintf("%s/hooks/%06d_%s", opt.LogDir, opt.ResourceID, opt.Kind)
	if err := fileutil.EnsureDirForFile(logPath); err != nil {
		return Result{}, fmt.Errorf("hook: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("hook: open log %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, "sh", "-c", opt.Command)
	cmd.Env = opt.Env.toOSEnv()

	if opt.CaptureBytes <= 0 {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		if err := cmd.Run(); err != nil {
			return resultFromRunErr(err)
		}
		return Result{Status: 0}, nil
	}

	return runCapturing(cmd, logFile, opt.CaptureBytes, opt.SecureLines)
}

// runCapturing implements spec.md §4.2 mode 2: stdout is read line by line,
// each line written in full to the log, while a bounded prefix is
// accumulated into the returned Stdout according to the secure_lines rule.
func runCapturing(cmd *exec.Cmd, logFile *os.File, budget int, secureLines bool) (Result, error) {
	cmd.Stderr = logFile
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("hook: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("hook: start: %w", err)
	}

	var captured []byte
	overflowed := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		lineWithNL := append(append([]byte{}, line...), '\n')
		if _, werr := logFile.Write(lineWithNL); werr != nil {
			return Result{}, fmt.Errorf("hook: write log: %w", werr)
		}

		if overflowed {
			continue
		}
		if len(captured)+len(lineWithNL) <= budget {
			captured = append(captured, lineWithNL...)
			continue
		}
		// First overflow.
		overflowed = true
		if secureLines {
			// Stop capture silently: never emit a partial line or the marker.
			continue
		}
		if len(captured) == 0 {
			prefix := lineWithNL
			if len(prefix) > budget {
				prefix = prefix[:budget]
			}
			captured = append(captured, prefix...)
		}
		captured = append(captured, []byte(TrimMarker)...)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("hook: read stdout: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		res, rerr := resultFromRunErr(err)
		res.Stdout = captured
		return res, rerr
	}
	return Result{Status: 0, Stdout: captured}, nil
}

// resultFromRunErr distinguishes a process exit with non-zero status (not a
// Runner error) from an exec-level failure (process could not be started or
// signaled — genuinely exceptional).
func resultFromRunErr(err error) (Result, error) {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return Result{Status: exitErr.ExitCode()}, nil
	}
	return Result{}, fmt.Errorf("hook: run: %w", err)
}
