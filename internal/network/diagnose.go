package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"syscall"
	"time"

	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/olekukonko/tablewriter"
)

type ErrorClass string

const (
	ErrorClassNone            ErrorClass = ""
	ErrorClassDNS             ErrorClass = "dns"
	ErrorClassRefused         ErrorClass = "refused"
	ErrorClassTimeout         ErrorClass = "timeout"
	ErrorClassReset           ErrorClass = "reset"
	ErrorClassUnreachable     ErrorClass = "unreachable"
	ErrorClassHTTP            ErrorClass = "http"
	ErrorClassChainIDMismatch ErrorClass = "chain-id-mismatch"
	ErrorClassOther           ErrorClass = "other"
)

type (
	// CheckResult is the outcome of a full diagnostic probe of one endpoint.
	CheckResult struct {
		Endpoint    Endpoint
		ChainID     *big.Int
		BlockNumber uint64
		GasPrice    *big.Int
		Latency     time.Duration
		Err         error
		Class       ErrorClass
	}

	// Diagnoser probes every endpoint, without stopping at the first live one.
	Diagnoser struct {
		prober *Prober
		logger *slog.Logger
	}
)

func NewDiagnoser(prober *Prober) *Diagnoser {
	return &Diagnoser{
		prober: prober,
		logger: logger.Named("network_diagnoser"),
	}
}

func (r CheckResult) Healthy() bool {
	return r.Err == nil
}

// CheckAll probes each endpoint in order and also reads its gas price.
func (d *Diagnoser) CheckAll(ctx context.Context, endpoints []Endpoint) []CheckResult {
	results := make([]CheckResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		results = append(results, d.check(ctx, endpoint))
	}
	return results
}

func (d *Diagnoser) check(ctx context.Context, endpoint Endpoint) CheckResult {
	result := CheckResult{Endpoint: endpoint}
	start := time.Now()

	session, err := d.prober.Probe(ctx, endpoint)
	if err != nil {
		result.Latency = time.Since(start)
		result.Err = err
		result.Class = ClassifyError(err)
		d.logger.With("url", endpoint.URL).With("class", result.Class).With("err", err.Error()).Warn("endpoint check failed")
		return result
	}
	defer session.Close()

	result.ChainID = session.ChainID
	result.BlockNumber = session.BlockNumber

	gasCtx, cancel := context.WithTimeout(ctx, d.prober.timeout)
	defer cancel()
	gasPrice, err := session.Client.SuggestGasPrice(gasCtx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("failed to get gas price: %w", err)
		result.Class = ClassifyError(err)
		return result
	}
	result.GasPrice = gasPrice

	d.logger.With("url", endpoint.URL).With("latency", result.Latency).Info("endpoint check passed")

	return result
}

// ClassifyError maps a probe failure onto a coarse, operator-facing class.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var (
		dnsErr  *net.DNSError
		httpErr rpc.HTTPError
		netErr  net.Error
	)

	switch {
	case errors.Is(err, ErrChainIDMismatch):
		return ErrorClassChainIDMismatch
	case errors.As(err, &dnsErr):
		return ErrorClassDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorClassRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrorClassReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return ErrorClassUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorClassTimeout
	case errors.As(err, &httpErr):
		return ErrorClassHTTP
	default:
		return ErrorClassOther
	}
}

// FirstHealthy returns the first healthy result, if any.
func FirstHealthy(results []CheckResult) (CheckResult, bool) {
	for _, result := range results {
		if result.Healthy() {
			return result, true
		}
	}
	return CheckResult{}, false
}

// RenderChecks writes results as a table.
func RenderChecks(w io.Writer, results []CheckResult) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Endpoint", "URL", "Status", "Chain ID", "Block", "Gas (gwei)", "Latency", "Error"})

	for _, result := range results {
		row := []string{result.Endpoint.Name, result.Endpoint.URL, "ok", "", "", "", result.Latency.Round(time.Millisecond).String(), ""}
		if result.ChainID != nil {
			row[3] = result.ChainID.String()
			row[4] = fmt.Sprintf("%d", result.BlockNumber)
		}
		if result.GasPrice != nil {
			row[5] = FormatGwei(result.GasPrice)
		}
		if result.Err != nil {
			row[2] = string(result.Class)
			row[7] = result.Err.Error()
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// FormatGwei renders a wei amount in gwei with two decimals.
func FormatGwei(wei *big.Int) string {
	gwei := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.GWei))
	return gwei.Text('f', 2)
}
