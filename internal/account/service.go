package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/olekukonko/tablewriter"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/wallet"
)

var ErrNoBalanceAvailable = errors.New("no endpoint returned a balance")

// Service reports the signer account on the selected network
type Service struct {
	checker *Checker
	logger  *slog.Logger
}

// NewService creates a new account service
func NewService(checker *Checker) *Service {
	return &Service{
		checker: checker,
		logger:  logger.Named("account_service"),
	}
}

// Run prints the signer address and its balance per endpoint, and warns
// when the first balance found is below cfg.Deploy.LowBalanceETH.
func (s *Service) Run(ctx context.Context, cfg configs.Config, w io.Writer) error {
	selected, err := cfg.SelectedNetwork()
	if err != nil {
		return err
	}
	if err := selected.Validate(); err != nil {
		return err
	}

	key, err := wallet.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		return err
	}

	s.logger.With("network", cfg.Network).With("address", key.Address.Hex()).Info("checking account balance")
	if _, err := fmt.Fprintf(w, "Account %s on %s\n", key.Address.Hex(), cfg.Network); err != nil {
		return err
	}

	results := s.checker.CheckEndpoints(ctx, network.EndpointsFromConfig(selected), key.Address)
	if err := RenderBalances(w, results); err != nil {
		return fmt.Errorf("failed to render balances: %w", err)
	}

	found, ok := firstBalance(results)
	if !ok {
		errs := make([]error, 0, len(results))
		for _, result := range results {
			errs = append(errs, fmt.Errorf("%s: %w", result.Endpoint.String(), result.Err))
		}
		return fmt.Errorf("%w: %w", ErrNoBalanceAvailable, errors.Join(errs...))
	}

	if _, err := fmt.Fprintln(w, FormatETHBalance(found.Endpoint.Name, key.Address, found.Balance, nil)); err != nil {
		return err
	}

	if IsLow(found.Balance, cfg.Deploy.LowBalanceETH) {
		s.logger.With("balance", FormatETH(found.Balance)).Warn("low balance")
		if _, err := fmt.Fprintln(w, LowBalanceHint(cfg.Deploy.LowBalanceETH, selected.FaucetURL)); err != nil {
			return err
		}
	}

	return nil
}

// LowBalanceHint tells the operator to top up the account.
func LowBalanceHint(thresholdETH float64, faucetURL string) string {
	hint := fmt.Sprintf("Warning: balance is below %g ETH, the deployment may fail.", thresholdETH)
	if faucetURL != "" {
		hint += " Request test ETH from " + faucetURL
	}
	return hint
}

// RenderBalances writes one table row per endpoint.
func RenderBalances(w io.Writer, results []BalanceInfo) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Endpoint", "URL", "Chain ID", "Balance", "Error"})

	for _, result := range results {
		row := []string{result.Endpoint.Name, result.Endpoint.URL, "", "", ""}
		if result.ChainID != nil {
			row[2] = result.ChainID.String()
		}
		if result.Err != nil {
			row[4] = result.Err.Error()
		} else {
			row[3] = FormatETH(result.Balance)
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// firstBalance prefers the first positive balance over the first zero one.
func firstBalance(results []BalanceInfo) (BalanceInfo, bool) {
	var found BalanceInfo
	ok := false
	for _, result := range results {
		if result.Err != nil || result.Balance == nil {
			continue
		}
		if result.Balance.Sign() > 0 {
			return result, true
		}
		if !ok {
			found, ok = result, true
		}
	}
	return found, ok
}
