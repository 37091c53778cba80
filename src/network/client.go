// Package network implements the queries a validator node makes against the
// peer network and against its own status endpoint.
//
// Each network query goes through the fetch package, which keeps an active
// peer and retries against a freshly selected one. Queries whose answer only
// changes at cycle boundaries are cached for one cycle; the cycle duration is
// itself a cached network query.
package network

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/cache"
	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/fetch"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Client runs network queries through a Fetcher, in front of an optional
// Cache. A nil cache disables caching.
type Client struct {
	fetcher *fetch.Fetcher
	cache   cache.Cache
	group   singleflight.Group
	logger  *logrus.Entry
}

// NewClient creates a Client.
func NewClient(fetcher *fetch.Fetcher, c cache.Cache, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Client{
		fetcher: fetcher,
		cache:   c,
		logger:  logger,
	}
}

// Fetcher returns the underlying Fetcher.
func (c *Client) Fetcher() *fetch.Fetcher {
	return c.fetcher
}

// cached returns the value cached under key, or loads it. Concurrent loads of
// the same key share one fetch. The shared fetch runs detached from any
// caller's context, its duration bounded by the fetch retry budget; ctx only
// bounds how long this caller waits for it. A loaded value is cached for the
// duration returned by ttl; failing to cache it is logged, not returned.
func cached[T any](
	ctx context.Context,
	c *Client,
	key string,
	load func(context.Context) (*T, error),
	ttl func(context.Context, *T) (time.Duration, error),
) (*T, error) {

	if c.cache != nil {
		var v T
		ok, err := cache.GetValue(c.cache, key, &v)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Dropping unreadable cache entry")
		} else if ok {
			return &v, nil
		}
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared := context.Background()

		v, err := load(shared)
		if err != nil {
			return nil, err
		}

		if c.cache == nil {
			return v, nil
		}

		d, err := ttl(shared, v)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Not caching, no cycle duration")
			return v, nil
		}

		if err := cache.SetValue(c.cache, key, v, d); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to cache value")
		}

		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*T), nil
	}
}

// cycleTTL is the validity window of cached network values: one cycle.
func (c *Client) cycleTTL(ctx context.Context) (time.Duration, error) {
	d, err := c.CycleDuration(ctx)
	if err != nil {
		return 0, err
	}
	return cycleWindow(d), nil
}

// cycleWindow converts a cycle duration, in seconds, to the cache TTL.
func cycleWindow(duration int64) time.Duration {
	return time.Duration(duration*1000) * time.Millisecond
}

func missing(op, field string) error {
	return common.NewFetchErr(op, common.MissingField, fmt.Errorf("%s is missing", field))
}

// CycleDuration returns the duration of the newest cycle, in seconds. It is
// cached for that same duration.
func (c *Client) CycleDuration(ctx context.Context) (int64, error) {
	res, err := cached(ctx, c, CycleDurationKey,
		func(ctx context.Context) (*cycleResponse, error) {
			return fetch.Get(ctx, c.fetcher, fetch.Query{Name: "cycleDuration", Path: NewestCyclePath},
				func(r *cycleResponse) bool { return r.NewestCycle == nil })
		},
		func(ctx context.Context, r *cycleResponse) (time.Duration, error) {
			if r.NewestCycle.Duration == nil {
				return 0, missing(NewestCyclePath, "newestCycle.duration")
			}
			return cycleWindow(*r.NewestCycle.Duration), nil
		},
	)
	if err != nil {
		return 0, err
	}

	if res.NewestCycle.Duration == nil {
		return 0, missing(NewestCyclePath, "newestCycle.duration")
	}

	return *res.NewestCycle.Duration, nil
}

// InitialParameters returns the network reward parameters held by the
// network account.
func (c *Client) InitialParameters(ctx context.Context) (*InitialParameters, error) {
	path := AccountPath + NetworkAccount

	res, err := cached(ctx, c, InitialParametersKey,
		func(ctx context.Context) (*networkAccountResponse, error) {
			q := fetch.Query{
				Name:   "initialParameters",
				Path:   path,
				Params: accountQuery{Type: NetworkAccountType},
			}
			return fetch.Get(ctx, c.fetcher, q,
				func(r *networkAccountResponse) bool { return r.Account == nil })
		},
		func(ctx context.Context, _ *networkAccountResponse) (time.Duration, error) {
			return c.cycleTTL(ctx)
		},
	)
	if err != nil {
		return nil, err
	}

	if res.Account.Data == nil || res.Account.Data.Current == nil {
		return nil, missing(path, "account.data.current")
	}
	cur := res.Account.Data.Current

	amount, err := common.DecodeHexBig(cur.NodeRewardAmountUsd)
	if err != nil {
		return nil, common.NewFetchErr(path, common.MissingField, fmt.Errorf("nodeRewardAmountUsd: %w", err))
	}

	interval, err := common.DecodeHexInt64(cur.NodeRewardInterval)
	if err != nil {
		return nil, common.NewFetchErr(path, common.MissingField, fmt.Errorf("nodeRewardInterval: %w", err))
	}

	return &InitialParameters{
		NodeRewardAmount:   amount,
		NodeRewardInterval: interval,
	}, nil
}

// NodeParameters returns the data of the account that holds the parameters
// of the node with the given public key. It is not cached.
func (c *Client) NodeParameters(ctx context.Context, publicKey string) (map[string]interface{}, error) {
	path := AccountPath + publicKey

	q := fetch.Query{
		Name:   "nodeParameters",
		Path:   path,
		Params: accountQuery{Type: NodeAccountType},
	}

	res, err := fetch.Get(ctx, c.fetcher, q,
		func(r *accountResponse) bool { return r.Account == nil })
	if err != nil {
		return nil, err
	}

	data, ok := res.Account["data"].(map[string]interface{})
	if !ok {
		return nil, missing(path, "account.data")
	}

	return data, nil
}

// Account returns an externally owned account. It is not cached.
func (c *Client) Account(ctx context.Context, address string) (map[string]interface{}, error) {
	res, err := fetch.Get(ctx, c.fetcher, fetch.Query{Name: "account", Path: AccountPath + address},
		func(r *accountResponse) bool { return r.Account == nil })
	if err != nil {
		return nil, err
	}

	return res.Account, nil
}

// StakeRequirement returns the stake a validator must lock.
func (c *Client) StakeRequirement(ctx context.Context) (*big.Int, error) {
	res, err := cached(ctx, c, StakeParamsKey,
		func(ctx context.Context) (*stakeResponse, error) {
			return fetch.Get(ctx, c.fetcher, fetch.Query{Name: "stakeRequirement", Path: StakePath},
				func(r *stakeResponse) bool { return r.StakeRequired == "" })
		},
		func(ctx context.Context, _ *stakeResponse) (time.Duration, error) {
			return c.cycleTTL(ctx)
		},
	)
	if err != nil {
		return nil, err
	}

	stake, err := common.DecodeHexBig(res.StakeRequired)
	if err != nil {
		return nil, common.NewFetchErr(StakePath, common.MissingField, fmt.Errorf("stakeRequired: %w", err))
	}

	return stake, nil
}

// NetworkStats returns the network-wide statistics object.
func (c *Client) NetworkStats(ctx context.Context) (map[string]interface{}, error) {
	res, err := cached(ctx, c, NetworkStatsKey,
		func(ctx context.Context) (*map[string]interface{}, error) {
			return fetch.Get(ctx, c.fetcher, fetch.Query{Name: "networkStats", Path: NetworkStatsPath},
				func(r *map[string]interface{}) bool { return len(*r) == 0 })
		},
		func(ctx context.Context, _ *map[string]interface{}) (time.Duration, error) {
			return c.cycleTTL(ctx)
		},
	)
	if err != nil {
		return nil, err
	}

	return *res, nil
}

// NodeInfo returns the node info reported by the active peer. It is not
// cached.
func (c *Client) NodeInfo(ctx context.Context) (map[string]interface{}, error) {
	res, err := fetch.Get(ctx, c.fetcher, fetch.Query{Name: "nodeInfo", Path: NodeInfoPath},
		func(r *nodeInfoResponse) bool { return r.NodeInfo == nil })
	if err != nil {
		return nil, err
	}

	return res.NodeInfo, nil
}

// ValidatorVersions returns the validator versions from the network config.
func (c *Client) ValidatorVersions(ctx context.Context) (*Versions, error) {
	res, err := cached(ctx, c, ValidatorVersionsKey,
		func(ctx context.Context) (*netConfigResponse, error) {
			return fetch.Get(ctx, c.fetcher, fetch.Query{Name: "validatorVersions", Path: NetConfigPath},
				func(r *netConfigResponse) bool { return r.Config == nil })
		},
		func(ctx context.Context, _ *netConfigResponse) (time.Duration, error) {
			return c.cycleTTL(ctx)
		},
	)
	if err != nil {
		return nil, err
	}

	if res.Config.Server == nil || res.Config.Server.P2P == nil {
		return nil, missing(NetConfigPath, "config.server.p2p")
	}

	v := *res.Config.Server.P2P
	return &v, nil
}
