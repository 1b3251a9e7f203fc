package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineConfigPath(t *testing.T) {
	dir := t.TempDir()
	fromFlag := filepath.Join(dir, "flag.yaml")
	fromEnv := filepath.Join(dir, "env.yaml")
	for _, p := range []string{fromFlag, fromEnv} {
		require.NoError(t, os.WriteFile(p, []byte("http:\n  port: 7000\n"), 0o600))
	}

	prev := searchPaths
	searchPaths = []string{filepath.Join(dir, "missing.yaml")}
	t.Cleanup(func() { searchPaths = prev })

	tests := []struct {
		name    string
		args    []string
		env     string
		want    string
		wantErr bool
	}{
		{name: "flag wins over env", args: []string{"--config", fromFlag}, env: fromEnv, want: fromFlag},
		{name: "env", env: fromEnv, want: fromEnv},
		{name: "nothing found", want: ""},
		{name: "explicit path missing", args: []string{"--config", filepath.Join(dir, "nope.yaml")}, wantErr: true},
		{name: "unknown flag", args: []string{"--port", "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INTERCHANGE_CONFIG", tt.env)

			got, err := DetermineConfigPath(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
