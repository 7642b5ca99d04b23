package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 3 * time.Second
)

type (
	// Factory submits one deployment transaction and blocks until it is
	// confirmed or fails. attempt starts at 1.
	Factory interface {
		Deploy(ctx context.Context, attempt uint) (*Deployment, error)
	}

	// Deployment is a confirmed contract creation.
	Deployment struct {
		Address     common.Address
		Deployer    common.Address
		TxHash      common.Hash
		BlockNumber uint64
		GasUsed     uint64
		Attempts    uint
		// LateMined is set when an earlier attempt's transaction was found
		// mined and nothing was rebroadcast.
		LateMined bool
	}

	// Attempt is the outcome of one submission.
	Attempt struct {
		Number  uint
		Address common.Address
		Err     error
	}

	// Policy bounds the retry loop. The zero value retries DefaultMaxRetries
	// times with no delay using IsRetryable.
	Policy struct {
		MaxRetries uint
		Delay      time.Duration
		Strategy   configs.RetryStrategy
		MaxDelay   time.Duration
		MaxJitter  time.Duration
		Retryable  func(error) bool
		OnAttempt  func(Attempt)

		timer retry.Timer
	}
)

// PolicyFromConfig builds the retry policy of the deploy section.
func PolicyFromConfig(cfg configs.Deploy) Policy {
	maxRetries := uint(DefaultMaxRetries)
	if cfg.MaxRetries > 0 {
		maxRetries = uint(cfg.MaxRetries)
	}

	return Policy{
		MaxRetries: maxRetries,
		Delay:      cfg.RetryDelay,
		Strategy:   cfg.RetryStrategy,
		MaxDelay:   cfg.MaxDelay,
		MaxJitter:  cfg.MaxJitter,
		Retryable:  IsRetryable,
	}
}

// DeployWithRetry runs factory until it succeeds, returns a non-retryable
// error, or MaxRetries attempts have failed. The error of the final attempt
// is returned unchanged.
func DeployWithRetry(ctx context.Context, factory Factory, policy Policy) (*Deployment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	policy = policy.withDefaults()
	log := logger.Named("deploy_retry")

	var attempt uint
	deployment, err := retry.DoWithData(
		func() (*Deployment, error) {
			attempt++
			log.With("attempt", attempt).With("max_attempts", policy.MaxRetries).Info("submitting deployment transaction")

			deployment, err := factory.Deploy(ctx, attempt)
			if err != nil {
				policy.notify(Attempt{Number: attempt, Err: err})
				return nil, err
			}

			deployment.Attempts = attempt
			policy.notify(Attempt{Number: attempt, Address: deployment.Address})
			log.With("attempt", attempt).With("address", deployment.Address.Hex()).Info("deployment confirmed")
			return deployment, nil
		},
		policy.options(ctx, log)...,
	)
	if err != nil {
		log.With("attempts", attempt).With("err", err.Error()).Error("deployment failed")
		return nil, err
	}

	return deployment, nil
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	if p.Strategy == "" {
		p.Strategy = configs.RetryStrategyFixed
	}
	return p
}

func (p Policy) options(ctx context.Context, log *slog.Logger) []retry.Option {
	options := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.MaxRetries),
		retry.Delay(p.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(p.Retryable),
		retry.OnRetry(func(n uint, err error) {
			entry := log.With("attempt", n+1).With("err", err.Error())
			if n+1 < p.MaxRetries {
				entry.Warn("deployment attempt failed, retrying")
				return
			}
			entry.Warn("deployment attempt failed, no retries left")
		}),
	}

	switch p.Strategy {
	case configs.RetryStrategyBackoff:
		// RandomDelay panics on a zero jitter
		delayType := retry.BackOffDelay
		if p.MaxJitter > 0 {
			delayType = retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)
		}
		options = append(options,
			retry.DelayType(delayType),
			retry.MaxJitter(p.MaxJitter),
			retry.MaxDelay(p.MaxDelay),
		)
	default:
		options = append(options, retry.DelayType(retry.FixedDelay))
	}

	if p.timer != nil {
		options = append(options, retry.WithTimer(p.timer))
	}

	return options
}

func (p Policy) notify(attempt Attempt) {
	if p.OnAttempt != nil {
		p.OnAttempt(attempt)
	}
}
