package procrunner

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestRunCapturesStdout(t *testing.T) {
	result, err := Run(context.Background(), "echo", []string{"hello"}, Options{})
	assert.NilError(t, err)
	assert.Equal(t, strings.TrimSpace(result.CombinedOutput), "hello")
	assert.Equal(t, result.ExitCode, 0)
}

func TestRunReturnsExecErrorOnNonZeroExit(t *testing.T) {
	_, err := Run(context.Background(), "false", nil, Options{})
	assert.Assert(t, err != nil)

	var execErr *ExecError
	assert.Assert(t, castExecError(err, &execErr))
	assert.Equal(t, execErr.Command, "false")
}

func TestRunRespectsTimeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), "sleep", []string{"5"}, Options{TimeoutMs: 100})
	elapsed := time.Since(start)

	assert.Assert(t, err != nil)
	assert.Assert(t, elapsed < 4*time.Second)
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	result, err := Run(context.Background(), "pwd", nil, Options{Dir: dir})
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(result.CombinedOutput, dir))
}

func TestLimitedBufferDropsBytesPastLimit(t *testing.T) {
	buf := &limitedBuffer{limit: 5}
	n, err := buf.Write([]byte("hello world"))
	assert.NilError(t, err)
	assert.Equal(t, n, len("hello world"))
	assert.Equal(t, buf.buf.String(), "hello")
}

func castExecError(err error, target **ExecError) bool {
	if e, ok := err.(*ExecError); ok {
		*target = e
		return true
	}
	return false
}
