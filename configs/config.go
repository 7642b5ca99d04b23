package configs

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/params"
)

var Values Config

type (
	NetworkName   string
	RetryStrategy string

	Config struct {
		LogLevel string                  `mapstructure:"log-level"`
		Network  NetworkName             `mapstructure:"network"`
		Networks map[NetworkName]Network `mapstructure:"networks"`
		Wallet   Wallet                  `mapstructure:"wallet"`
		Deploy   Deploy                  `mapstructure:"deploy"`
		Probe    Probe                   `mapstructure:"probe"`
		Output   Output                  `mapstructure:"output"`
		DevNode  DevNode                 `mapstructure:"devnode"`
	}

	Network struct {
		ChainID     int        `mapstructure:"chain-id"`
		ExplorerURL string     `mapstructure:"explorer-url"`
		FaucetURL   string     `mapstructure:"faucet-url"`
		Endpoints   []Endpoint `mapstructure:"endpoints"`
	}

	// Endpoint is one JSON-RPC URL. ChainID is optional; zero means the
	// network's chain id (if any) is expected.
	Endpoint struct {
		Name    string `mapstructure:"name"`
		URL     string `mapstructure:"url"`
		ChainID int    `mapstructure:"chain-id"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key"`
	}

	Deploy struct {
		Artifact            string        `mapstructure:"artifact"`
		GasLimit            uint64        `mapstructure:"gas-limit"`
		GasPriceGwei        float64       `mapstructure:"gas-price-gwei"`
		MaxRetries          int           `mapstructure:"max-retries"`
		RetryDelay          time.Duration `mapstructure:"retry-delay"`
		RetryStrategy       RetryStrategy `mapstructure:"retry-strategy"`
		MaxDelay            time.Duration `mapstructure:"max-delay"`
		MaxJitter           time.Duration `mapstructure:"max-jitter"`
		ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout"`
		LowBalanceETH       float64       `mapstructure:"low-balance-eth"`
	}

	Probe struct {
		Timeout  time.Duration `mapstructure:"timeout"`
		Deadline time.Duration `mapstructure:"deadline"`
	}

	Output struct {
		File string `mapstructure:"file"`
	}

	DevNode struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
		ChainID       int    `mapstructure:"chain-id"`
		// StateDir keeps the anvil state between runs. Empty disables it.
		StateDir string `mapstructure:"state-dir"`
	}
)

const (
	RetryStrategyFixed   RetryStrategy = "fixed"
	RetryStrategyBackoff RetryStrategy = "backoff"

	NetworkNameLocalhost NetworkName = "localhost"
)

// SelectedNetwork returns the network named by the "network" key.
func (c *Config) SelectedNetwork() (Network, error) {
	if c.Network == "" {
		return Network{}, errors.New("network is required")
	}

	network, ok := c.Networks[c.Network]
	if !ok {
		return Network{}, fmt.Errorf("network '%s' is not configured", c.Network)
	}

	return network, nil
}

func (n *Network) Validate() error {
	var errs []error

	if len(n.Endpoints) == 0 {
		errs = append(errs, errors.New("at least one endpoint is required"))
	}
	for i, endpoint := range n.Endpoints {
		if endpoint.URL == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d].url is required", i))
			continue
		}
		parsed, err := url.Parse(endpoint.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d].url '%s' is not a valid URL", i, endpoint.URL))
		}
		if endpoint.ChainID < 0 {
			errs = append(errs, fmt.Errorf("endpoints[%d].chain-id must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("network configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ExpectedChainID resolves the chain id an endpoint must report.
func (n *Network) ExpectedChainID(endpoint Endpoint) int {
	if endpoint.ChainID != 0 {
		return endpoint.ChainID
	}
	return n.ChainID
}

func (w *Wallet) Validate() error {
	if w.PrivateKey == "" {
		return errors.New("wallet.private-key is required (set PRIVATE_KEY in the environment or .env)")
	}
	return nil
}

func (d *Deploy) Validate() error {
	var errs []error

	if d.Artifact == "" {
		errs = append(errs, errors.New("deploy.artifact is required"))
	}
	if d.GasLimit == 0 {
		errs = append(errs, errors.New("deploy.gas-limit must be greater than 0"))
	}
	if d.GasPriceGwei <= 0 {
		errs = append(errs, errors.New("deploy.gas-price-gwei must be greater than 0"))
	}
	if d.MaxRetries < 1 {
		errs = append(errs, errors.New("deploy.max-retries must be at least 1"))
	}
	if d.RetryDelay < 0 {
		errs = append(errs, errors.New("deploy.retry-delay must not be negative"))
	}
	if d.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("deploy.confirmation-timeout must be greater than 0"))
	}

	switch d.RetryStrategy {
	case RetryStrategyFixed:
	case RetryStrategyBackoff:
		if d.MaxDelay <= 0 {
			errs = append(errs, errors.New("deploy.max-delay must be greater than 0 for the backoff strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("deploy.retry-strategy must be either '%s' or '%s'", RetryStrategyFixed, RetryStrategyBackoff))
	}

	if len(errs) > 0 {
		return fmt.Errorf("deploy configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// GasPriceWei converts the configured gwei price to wei.
func (d *Deploy) GasPriceWei() *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(d.GasPriceGwei), big.NewFloat(params.GWei)).Int(nil)
	return wei
}

func (p *Probe) Validate() error {
	var errs []error

	if p.Timeout <= 0 {
		errs = append(errs, errors.New("probe.timeout must be greater than 0"))
	}
	if p.Deadline < 0 {
		errs = append(errs, errors.New("probe.deadline must not be negative"))
	}

	return errors.Join(errs...)
}

func (n *DevNode) Validate() error {
	var errs []error

	if n.Image == "" {
		errs = append(errs, errors.New("devnode.image is required"))
	}
	if n.ContainerName == "" {
		errs = append(errs, errors.New("devnode.container-name is required"))
	}
	if n.Port <= 0 || n.Port > 65535 {
		errs = append(errs, errors.New("devnode.port must be between 1 and 65535"))
	}
	if n.ChainID <= 0 {
		errs = append(errs, errors.New("devnode.chain-id must be greater than 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("devnode configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
