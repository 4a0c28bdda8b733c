package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"init-db", "run", "serve"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestCommandArgs(t *testing.T) {
	root := newRootCmd()

	tests := []struct {
		cmd     string
		args    []string
		wantErr bool
	}{
		{"run", nil, false},
		{"run", []string{"landing"}, false},
		{"run", []string{"a.csv", "b.csv"}, true},
		{"serve", nil, false},
		{"serve", []string{"extra"}, true},
		{"init-db", []string{"extra"}, true},
	}

	for _, tt := range tests {
		cmd, _, err := root.Find([]string{tt.cmd})
		require.NoError(t, err)

		err = cmd.Args(cmd, tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%s %v", tt.cmd, tt.args)
		} else {
			assert.NoError(t, err, "%s %v", tt.cmd, tt.args)
		}
	}
}

func TestExecuteReportsUsageErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"run", "a.csv", "b.csv"}, "accepts at most 1 arg(s), received 2"},
		{[]string{"serve", "extra"}, `unknown command "extra"`},
		{[]string{"bogus"}, `unknown command "bogus"`},
	}

	for _, tt := range tests {
		var stderr bytes.Buffer
		code := execute(context.Background(), tt.args, &stderr)

		assert.Equal(t, 1, code, "%v", tt.args)
		assert.Contains(t, stderr.String(), "Error: ", "%v", tt.args)
		assert.Contains(t, stderr.String(), tt.want, "%v", tt.args)
	}
}
