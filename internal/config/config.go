// Package config centralizes runtime configuration for msc. Values are
// environment-first (MSC_ prefix) with an optional config file for
// development; every knob has a default except the secrets and addresses
// that the owning component must fail fast on (contract address, pinning
// credential, backend key). Those are left empty here and validated at the
// point of use, before any I/O.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds configurable options for the msc processes.
type Config struct {
	ContractAddress        string        // PostingImage contract address (required by the client)
	RPCURL                 string        // wallet provider / node JSON-RPC endpoint
	PinningEndpoint        string        // pinning service upload endpoint
	PinningJWT             string        // bearer credential for the pinning service (required for uploads)
	PinningGateway         string        // gateway base URL for retrieving pinned content
	StorageContractAddress string        // SimpleStorage demo contract (backend only)
	BackendRPCURL          string        // node endpoint the backend signs against
	BackendPrivateKey      string        // hex private key for the backend signer (backend only)
	Port                   int           // dashboard port
	BackendPort            int           // toy backend port
	UploadDir              string        // backend upload stub destination
	CacheFile              string        // sqlite feed snapshot location
	DocsDir                string        // asciidoc help pages
	PollInterval           time.Duration // provider poll cadence for the session watcher
	FinalityTimeout        time.Duration // how long a write may wait for its receipt
}

// InitConfig sets up the viper instance backing Load.
func InitConfig(v *viper.Viper) {
	v.SetEnvPrefix("MSC")
	v.AutomaticEnv()

	v.SetDefault("contract_address", "")
	v.SetDefault("rpc_url", "http://127.0.0.1:7545")
	v.SetDefault("pinning_endpoint", "https://api.pinata.cloud/pinning/pinFileToIPFS")
	v.SetDefault("pinning_jwt", "")
	v.SetDefault("pinning_gateway", "")
	v.SetDefault("storage_contract_address", "")
	v.SetDefault("backend_rpc_url", "http://127.0.0.1:7545")
	v.SetDefault("backend_private_key", "")
	v.SetDefault("port", 8080)
	v.SetDefault("backend_port", 5000)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("cache_file", "feed.db")
	v.SetDefault("docs_dir", "docs")
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("finality_timeout", "90s")

	// Optional file, for development convenience only. Environment always wins.
	v.SetConfigName("msc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
}

// Load builds a Config from a prepared viper instance.
func Load(v *viper.Viper) *Config {
	return &Config{
		ContractAddress:        v.GetString("contract_address"),
		RPCURL:                 v.GetString("rpc_url"),
		PinningEndpoint:        v.GetString("pinning_endpoint"),
		PinningJWT:             v.GetString("pinning_jwt"),
		PinningGateway:         v.GetString("pinning_gateway"),
		StorageContractAddress: v.GetString("storage_contract_address"),
		BackendRPCURL:          v.GetString("backend_rpc_url"),
		BackendPrivateKey:      v.GetString("backend_private_key"),
		Port:                   v.GetInt("port"),
		BackendPort:            v.GetInt("backend_port"),
		UploadDir:              v.GetString("upload_dir"),
		CacheFile:              v.GetString("cache_file"),
		DocsDir:                v.GetString("docs_dir"),
		PollInterval:           v.GetDuration("poll_interval"),
		FinalityTimeout:        v.GetDuration("finality_timeout"),
	}
}

var cfg *Config

// Get returns the process-wide configuration, initializing defaults on first
// use. Tests construct their own Config directly instead.
func Get() *Config {
	if cfg == nil {
		v := viper.New()
		InitConfig(v)
		cfg = Load(v)
	}
	return cfg
}

// Set replaces the process-wide configuration. Intended for entry points.
func Set(c *Config) {
	cfg = c
}
