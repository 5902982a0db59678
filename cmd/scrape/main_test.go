package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_InvalidArgsPrintUsage(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown target", []string{"bogus"}, `invalid argument "bogus"`},
		{"no target", []string{}, "accepts 1 arg(s), received 0"},
		{"two targets", []string{"schemes", "details"}, "accepts 1 arg(s), received 2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetArgs(tc.args)
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)
			t.Cleanup(func() {
				rootCmd.SetArgs(nil)
				rootCmd.SetOut(nil)
				rootCmd.SetErr(nil)
			})

			err := rootCmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Contains(t, out.String(), "Usage:")
			assert.Contains(t, out.String(), "scrape [schemes|details]")
		})
	}
}

func TestValidateTarget_AcceptsKnownTargets(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetErr(nil) })

	for _, target := range []string{"schemes", "details"} {
		assert.NoError(t, validateTarget(rootCmd, []string{target}))
	}
	assert.Empty(t, out.String())
}
