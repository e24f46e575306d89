package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"compiled": "V().out()"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"compiled": "V().out()"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	tests := []struct {
		name    string
		details interface{}
	}{
		{"no_details", nil},
		{"with_details", map[string]string{"file": "traversals.cue", "line": "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			require.NoError(t, formatter.Error(ErrCodeCompileFailed, "strategy failed", tt.details))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "E202", resp.Error.Code)
			assert.Equal(t, "strategy failed", resp.Error.Message)
			assert.Equal(t, tt.details != nil, resp.Error.Details != nil)
		})
	}
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeSourceInvalid, "unknown step", map[string]string{"step": "outE2"}))
			assert.Contains(t, buf.String(), "Error [E101]: unknown step")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details:")))
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("Compiling traversal: %s", "lonely")

			assert.Empty(t, out.String(), "verbose output must not corrupt JSON")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Compiling traversal: lonely")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_VerboseLogFallback(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: true}

	formatter.VerboseLog("Found %d traversal(s)", 2)
	assert.Equal(t, "Found 2 traversal(s)\n", out.String())
}

func TestOutputFormatter_Failure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	report := ValidationResult{Valid: false, Errors: []ValidationError{{Code: ErrCodeSourceInvalid, Message: "unknown step"}}}
	require.NoError(t, formatter.Failure(ErrCodeSourceInvalid, "unknown step", report))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSourceInvalid, resp.Error.Code)
	assert.Nil(t, resp.Error.Details)

	buf.Reset()
	formatter.Format = "text"
	require.NoError(t, formatter.Failure(ErrCodeScenarioFailed, "2 scenario(s) failed", nil))
	assert.Equal(t, "Error [E305]: 2 scenario(s) failed\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("boom"), ExitFailure},
		{"command", NewExitError(ExitCommandError, "bad path"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", WrapExitError(ExitCommandError, "bad config", errors.New("x"))), ExitCommandError},
		{"failure", NewExitError(ExitFailure, "1 scenario failed"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad path", NewExitError(ExitCommandError, "bad path").Error())

	cause := errors.New("permission denied")
	err := WrapExitError(ExitCommandError, "failed to open store", cause)
	assert.Equal(t, "failed to open store: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}
