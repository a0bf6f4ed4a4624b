package config

import (
	"context"
	"flag"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// EnvContractAddress overrides contract.address when set.
const EnvContractAddress = "CROWDFUNDING_CONTRACT_ADDRESS"

var ErrContractAddressMissing = errors.New("contract address not configured, set " + EnvContractAddress)

// Wallet provider kinds.
const (
	ProviderKey           = "key"
	ProviderRPC           = "rpc"
	ProviderWalletConnect = "walletconnect"
)

// Configuration struct
type Configuration struct {
	LogLevel         int      `yaml:"log_level"`
	Chain            Chain    `yaml:"chain"`
	Contract         Contract `yaml:"contract"`
	Wallet           Wallet   `yaml:"wallet"`
	HTTP             HTTP     `yaml:"http"`
	Aws              Aws      `yaml:"aws"`
	SentryDSN        string   `yaml:"sentry_dsn"`
	LarkAlarmWebhook string   `yaml:"lark_alarm_webhook"`
}

// Chain selects the network the marketplace lives on. Unset fields fall back to
// the known chain table.
type Chain struct {
	ID      int64    `yaml:"id"`
	RPCURLs []string `yaml:"rpc_urls"`
}

type Contract struct {
	Address         string `yaml:"address"`
	AddressSSMParam string `yaml:"address_ssm_param"`
	RPCRateLimit    int    `yaml:"rpc_rate_limit"`
}

type Wallet struct {
	Provider      string        `yaml:"provider"`
	PrivateKey    string        `yaml:"private_key"`
	RPCURL        string        `yaml:"rpc_url"`
	WalletConnect WalletConnect `yaml:"walletconnect"`
}

type WalletConnect struct {
	BridgeURL   string   `yaml:"bridge_url"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Icons       []string `yaml:"icons"`
	QRCodePath  string   `yaml:"qr_code_path"`
}

type HTTP struct {
	Listen  string        `yaml:"listen"`
	Timeout time.Duration `yaml:"timeout"`
}

type Aws struct {
	Region      string `yaml:"region"`
	ImageBucket string `yaml:"image_bucket"`
}

func defaults() Configuration {
	return Configuration{
		LogLevel: 1,
		Chain:    Chain{ID: chains.Ganache.ID},
		Contract: Contract{RPCRateLimit: 20},
		Wallet: Wallet{
			Provider: ProviderKey,
			WalletConnect: WalletConnect{
				BridgeURL:  "https://bridge.walletconnect.org",
				Name:       "Crowdfund",
				QRCodePath: "walletconnect.png",
			},
		},
		HTTP: HTTP{Listen: "127.0.0.1:8080", Timeout: 2 * time.Minute},
	}
}

// Load reads the yaml file at path over the defaults and applies environment
// overrides.
func Load(path string) (*Configuration, error) {
	log.Infof("Loading configuration file from %s", path)
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("file %s does not exist", path)
		}
		return nil, errors.Wrap(err, "read config")
	}
	c := defaults()
	if err := yaml.Unmarshal(dat, &c); err != nil {
		return nil, errors.Wrap(err, "fail to decode config")
	}
	if v := strings.TrimSpace(os.Getenv(EnvContractAddress)); v != "" {
		c.Contract.Address = v
	}
	return &c, nil
}

var Global *Configuration

// Read loads .env, if any, then the configuration file named by -config-path.
// Failures are fatal.
func Read() *Configuration {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("load .env: %v", err)
	}
	c, err := Load(*configFilePath)
	if err != nil {
		log.Fatal(err)
	}
	Global = c
	return c
}

// ParameterReader reads secrets, e.g. from SSM Parameter Store.
type ParameterReader interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ResolveContractAddress fills the contract address from params when neither the
// file nor the environment set it. The address must be known afterwards.
func (c *Configuration) ResolveContractAddress(ctx context.Context, params ParameterReader) (string, error) {
	if c.Contract.Address == "" && c.Contract.AddressSSMParam != "" && params != nil {
		v, err := params.GetParameter(ctx, c.Contract.AddressSSMParam)
		if err != nil {
			return "", errors.Wrapf(err, "read contract address from %s", c.Contract.AddressSSMParam)
		}
		c.Contract.Address = strings.TrimSpace(v)
	}
	if c.Contract.Address == "" {
		return "", ErrContractAddressMissing
	}
	return c.Contract.Address, nil
}

// Blockchain returns the configured network, with rpc_urls replacing the known
// endpoints when set.
func (c *Configuration) Blockchain() (*chains.Blockchain, error) {
	known, ok := chains.Lookup(c.Chain.ID)
	if !ok {
		if len(c.Chain.RPCURLs) == 0 {
			return nil, errors.Errorf("unknown chain %d needs rpc_urls", c.Chain.ID)
		}
		known = &chains.Blockchain{
			ID:       c.Chain.ID,
			Name:     "Chain " + strconv.FormatInt(c.Chain.ID, 10),
			Currency: chains.Ganache.Currency,
		}
	}
	chain := *known
	if len(c.Chain.RPCURLs) > 0 {
		chain.RPCURLs = append([]string(nil), c.Chain.RPCURLs...)
	}
	return &chain, nil
}
