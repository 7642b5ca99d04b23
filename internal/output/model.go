package output

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Record describes one deployed contract. It is meant to be copied into
	// the frontend configuration.
	Record struct {
		Contract        string             `yaml:"contract" json:"contract"`
		Address         string             `yaml:"address" json:"address"`
		DeployerAddress string             `yaml:"deployerAddress" json:"deployerAddress"`
		Network         string             `yaml:"network" json:"network"`
		ChainID         uint64             `yaml:"chainId" json:"chainId"`
		RPCURL          string             `yaml:"rpcUrl" json:"rpcUrl"`
		TxHash          string             `yaml:"txHash,omitempty" json:"txHash,omitempty"`
		BlockNumber     uint64             `yaml:"blockNumber,omitempty" json:"blockNumber,omitempty"`
		Attempts        uint               `yaml:"attempts,omitempty" json:"attempts,omitempty"`
		ExplorerURL     string             `yaml:"explorerUrl,omitempty" json:"explorerUrl,omitempty"`
		RunID           string             `yaml:"runId,omitempty" json:"runId,omitempty"`
		Timestamp       time.Time          `yaml:"timestamp" json:"timestamp"`
		Verification    *Verification      `yaml:"verification,omitempty" json:"verification,omitempty"`
		ABI             SingleQuotedString `yaml:"abi,omitempty" json:"abi,omitempty"`
	}

	// Verification holds the post-deploy reads that succeeded.
	Verification struct {
		Owner        string   `yaml:"owner,omitempty" json:"owner,omitempty"`
		VotingActive *bool    `yaml:"votingActive,omitempty" json:"votingActive,omitempty"`
		TotalVoters  string   `yaml:"totalVoters,omitempty" json:"totalVoters,omitempty"`
		Warnings     []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}

// CompactABI strips whitespace from a JSON ABI so it fits on one line.
func CompactABI(rawABI string) SingleQuotedString {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(rawABI)); err != nil {
		return SingleQuotedString(rawABI)
	}
	return SingleQuotedString(buf.String())
}

// ExplorerAddressURL links an address on a block explorer, or returns "".
func ExplorerAddressURL(explorerURL, address string) string {
	if explorerURL == "" || address == "" {
		return ""
	}
	return explorerURL + "/address/" + address
}
