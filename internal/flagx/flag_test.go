package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-a", "-d", "-w"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-a", ":8080", "-d", "postgres://db"}, []string{"-a", ":8080", "-d", "postgres://db"}},
		{"equals form", []string{"-w=5m", "--log-level=debug"}, []string{"-w=5m"}},
		{"foreign flags dropped", []string{"--device-id", "device_1", "-a", ":9090"}, []string{"-a", ":9090"}},
		{"positional args dropped", []string{"sync", "-a", ":1"}, []string{"-a", ":1"}},
		{"trailing flag without value", []string{"-d"}, []string{"-d"}},
		{"next flag is not a value", []string{"-d", "-w", "1m"}, []string{"-d", "-w", "1m"}},
		{"dash inside equals value", []string{"-d=--weird"}, []string{"-d=--weird"}},
		{"repeated flag keeps order", []string{"-a", ":1", "-a", ":2"}, []string{"-a", ":1", "-a", ":2"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, serverFlags))
		})
	}
}

func TestConfigFile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "server.yaml"}, "server.yaml"},
		{"long", []string{"-config", "server.json"}, "server.json"},
		{"double dash equals", []string{"-a", ":8080", "--config=/etc/tradesync.yaml"}, "/etc/tradesync.yaml"},
		{"absent", []string{"-a", ":8080", "-w", "5m"}, ""},
		{"last wins", []string{"-c", "one.yaml", "-config", "two.yaml"}, "two.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFile(tt.args))
		})
	}
}
