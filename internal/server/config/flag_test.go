package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "postgres://x", "-s", "secret",
				"-l", "zap", "-v", "debug", "-w", "90s", "-c", "ignored.json",
			},
			expected: &Config{
				EndpointAddrHTTP:  "127.0.0.1:9090",
				EndpointAddrGRPC:  ":6000",
				DatabaseDSN:       "postgres://x",
				SecretKey:         "secret",
				LogFormat:         "zap",
				LogLevel:          "debug",
				IdempotencyWindow: 90 * time.Second,
			},
		},
		{
			name:     "no flags keeps values",
			args:     []string{"-x", "1"},
			expected: &Config{},
		},
		{
			name:    "bad duration",
			args:    []string{"-w", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
