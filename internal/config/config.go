package config

import (
	"os"

	"github.com/go-yaml/yaml"

	"github.com/certanchor/certanchor"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
	Admins   []Admin  `yaml:"admins"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	IssuerName string `yaml:"issuerName"`
	IssuerContact string `yaml:"issuerContact"`

	// ---
	IssuerAddress string
}

type Server struct {
	PostgresDsn     string `yaml:"postgresDsn"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisDB         int    `yaml:"redisDB"`
	MemcachedAddr   string `yaml:"memcachedAddr"`
	LedgerEndpoint  string `yaml:"ledgerEndpoint"`
	EnableTrace     bool   `yaml:"enableTrace"`
	TraceEndpoint   string `yaml:"traceEndpoint"`
	MaxContentBytes int    `yaml:"maxContentBytes"`
	AnchorMaxRetries uint64 `yaml:"anchorMaxRetries"`
}

// Admin maps a bearer token to a named administrator for audit traceability.
type Admin struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	addr, err := certanchor.PrivKeyToAddr(config.NodeInfo.PrivateKey)
	if err != nil {
		return Config{}, err
	}

	config.NodeInfo.IssuerAddress = addr

	return config, nil
}
