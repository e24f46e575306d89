package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCommand(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidSource(t *testing.T) {
	src := writeSource(t, testSource)

	out, err := runValidateCommand(t, &RootOptions{Format: "text"}, src)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 2 traversal(s) valid")
}

func TestValidateValidSourceJSON(t *testing.T) {
	src := writeSource(t, testSource)

	out, err := runValidateCommand(t, &RootOptions{Format: "json"}, src)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Traversals)
}

func TestValidateNonExistentPath(t *testing.T) {
	_, err := runValidateCommand(t, &RootOptions{Format: "text"}, "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := runValidateCommand(t, &RootOptions{Format: "text"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateInvalidSource(t *testing.T) {
	src := writeSource(t, `traversal: broken: steps: [{step: "V"}, {step: "teleport"}]`)

	out, err := runValidateCommand(t, &RootOptions{Format: "json"}, src)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)

	ve := resp.Data.Errors[0]
	assert.Equal(t, ErrCodeSourceInvalid, ve.Code)
	assert.Contains(t, ve.Message, "teleport")
	assert.Positive(t, ve.Line)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSourceInvalid, resp.Error.Code)
}

func TestValidateComputerNeedsStart(t *testing.T) {
	src := writeSource(t, `
traversal: ok: steps: [{step: "V"}, {step: "out"}]
traversal: headless: {
	engine: "computer"
	steps: [{step: "out"}]
}
`)

	out, err := runValidateCommand(t, &RootOptions{Format: "text"}, src)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeExecutionFailed+": headless:")
	assert.Contains(t, out, "must start with V()")
	assert.NotContains(t, out, ": ok:")

	// The standard engine accepts the same chain.
	_, err = runValidateCommand(t, &RootOptions{Format: "text"}, "--engine", "standard", src)
	require.NoError(t, err)
}

func TestValidateVerboseOutput(t *testing.T) {
	src := writeSource(t, testSource)

	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{src})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errBuf.String(), "Found 2 traversal(s) in 1 CUE file(s)")
	assert.Contains(t, errBuf.String(), "Validating traversal: sink")
	assert.Contains(t, errBuf.String(), "Validating traversal: collected")
}

func TestValidatePath(t *testing.T) {
	src := writeSource(t, testSource)

	errs, err := ValidatePath(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, errs)

	broken := writeSource(t, `traversal: broken: steps: [{step: "V"}, {step: "teleport"}]`)
	errs, err = ValidatePath(context.Background(), broken)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeSourceInvalid, errs[0].Code)

	_, err = ValidatePath(context.Background(), "/nonexistent/path")
	require.Error(t, err)
}
