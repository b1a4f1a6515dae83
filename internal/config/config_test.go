package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	InitConfig(v)
	c := Load(v)

	if c.Port != 8080 {
		t.Errorf("Port = %d, want 8080", c.Port)
	}
	if c.BackendPort != 5000 {
		t.Errorf("BackendPort = %d, want 5000", c.BackendPort)
	}
	if c.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", c.PollInterval)
	}
	// Secrets and addresses have no defaults; their owners fail fast instead.
	if c.ContractAddress != "" || c.PinningJWT != "" || c.BackendPrivateKey != "" {
		t.Error("expected required secrets/addresses to default to empty")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("MSC_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000aa")
	t.Setenv("MSC_PORT", "9191")

	v := viper.New()
	InitConfig(v)
	c := Load(v)

	if c.ContractAddress != "0x00000000000000000000000000000000000000aa" {
		t.Errorf("ContractAddress = %q, want env value", c.ContractAddress)
	}
	if c.Port != 9191 {
		t.Errorf("Port = %d, want 9191", c.Port)
	}
}
