package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrEmptyBytecode = errors.New("artifact has no deployable bytecode")

type (
	// Artifact is a compiled contract: its ABI and creation bytecode.
	Artifact struct {
		Name     string
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}

	artifactFile struct {
		ContractName string          `json:"contractName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     json.RawMessage `json:"bytecode"`
	}

	foundryBytecode struct {
		Object string `json:"object"`
	}
)

// LoadArtifact reads a Hardhat or Foundry artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact '%s': %w", path, err)
	}

	artifact, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact '%s': %w", path, err)
	}
	if artifact.Name == "" {
		artifact.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return artifact, nil
}

// ParseArtifact parses artifact JSON. The bytecode field is either a hex
// string (Hardhat) or an object with an "object" hex string (Foundry).
func ParseArtifact(data []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	if len(file.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}

	parsedABI, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI for %s: %w", file.ContractName, err)
	}

	bytecodeHex, err := bytecodeString(file.Bytecode)
	if err != nil {
		return nil, err
	}

	bytecode, err := decodeBytecode(bytecodeHex)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Name:     file.ContractName,
		ABI:      parsedABI,
		RawABI:   string(file.ABI),
		Bytecode: bytecode,
	}, nil
}

func bytecodeString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyBytecode
	}

	var hardhat string
	if err := json.Unmarshal(raw, &hardhat); err == nil {
		return hardhat, nil
	}

	var foundry foundryBytecode
	if err := json.Unmarshal(raw, &foundry); err != nil {
		return "", fmt.Errorf("unsupported bytecode format: %w", err)
	}
	return foundry.Object, nil
}

func decodeBytecode(bytecodeHex string) ([]byte, error) {
	bytecodeHex = strings.TrimSpace(bytecodeHex)
	if !strings.HasPrefix(bytecodeHex, "0x") {
		bytecodeHex = "0x" + bytecodeHex
	}
	if bytecodeHex == "0x" {
		return nil, ErrEmptyBytecode
	}
	if strings.Contains(bytecodeHex, "__") {
		return nil, errors.New("bytecode contains unlinked library placeholders")
	}

	bytecode, err := hexutil.Decode(bytecodeHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode: %w", err)
	}
	return bytecode, nil
}
