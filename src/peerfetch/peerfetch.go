// Package peerfetch assembles a client session from a Config: the bootstrap
// registry, the persisted active peer, the transport, the peer selector, the
// fetcher, the result cache, the network queries and the optional HTTP API.
package peerfetch

import (
	"context"
	"fmt"

	"github.com/mosaicnetworks/peerfetch/src/cache"
	"github.com/mosaicnetworks/peerfetch/src/config"
	"github.com/mosaicnetworks/peerfetch/src/discovery"
	"github.com/mosaicnetworks/peerfetch/src/fetch"
	"github.com/mosaicnetworks/peerfetch/src/metrics"
	"github.com/mosaicnetworks/peerfetch/src/net"
	"github.com/mosaicnetworks/peerfetch/src/network"
	"github.com/mosaicnetworks/peerfetch/src/peers"
	"github.com/mosaicnetworks/peerfetch/src/service"
	"github.com/sirupsen/logrus"
)

// PeerFetch is a client session. The exported fields are set by Init.
type PeerFetch struct {
	Config    *config.Config
	Registry  *peers.Registry
	Store     *peers.JSONActivePeer
	Active    *peers.ActivePeer
	Transport *net.Client
	Selector  *discovery.RandomSelector
	Fetcher   *fetch.Fetcher
	Cache     cache.Cache
	Metrics   *metrics.Metrics
	Client    *network.Client
	LocalNode *network.LocalNode
	Service   *service.Service

	logger *logrus.Entry
}

// NewPeerFetch creates a session from config. Init must be called before it
// is used.
func NewPeerFetch(c *config.Config) *PeerFetch {
	return &PeerFetch{
		Config: c,
	}
}

func (p *PeerFetch) initStore() error {
	p.Store = peers.NewJSONActivePeer(p.Config.DataDir, p.logger)
	p.Active = peers.NewActivePeer()

	p.logger.WithField("path", p.Store.Path()).Debug("Using active peer file")

	return nil
}

func (p *PeerFetch) initTransport() error {
	p.Transport = net.NewClient(p.Config.Timeout, p.logger.WithField("prefix", "net"))
	return nil
}

func (p *PeerFetch) initCache() error {
	if !p.Config.CacheStore {
		p.Cache = cache.NewInmemCache(nil, config.DefaultPurgeTimeout)

		p.logger.Debug("created new in-mem cache")
	} else {
		p.logger.WithField("path", p.Config.CacheDir).Debug("Attempting to load or create database")

		c, err := cache.NewBadgerCache(p.Config.CacheDir, nil, p.logger)
		if err != nil {
			return err
		}
		p.Cache = c
	}

	p.Cache = p.Metrics.InstrumentCache(p.Cache)

	return nil
}

func (p *PeerFetch) initFetcher() error {
	p.Registry = peers.NewRegistry(p.Config.Archivers)

	p.Selector = discovery.NewRandomSelector(
		p.Registry,
		p.Store,
		p.Active,
		p.Transport,
		p.logger.WithField("prefix", "discovery"),
	)

	p.Fetcher = fetch.NewFetcher(
		p.Selector,
		p.Store,
		p.Active,
		p.Transport,
		p.Config.Retries,
		p.logger.WithField("prefix", "fetch"),
	)

	p.Metrics.Instrument(p.Fetcher)

	return nil
}

func (p *PeerFetch) initClients() error {
	p.Client = network.NewClient(p.Fetcher, p.Cache, p.logger.WithField("prefix", "network"))

	p.LocalNode = network.NewLocalNode(
		p.Config.NodeIP,
		p.Config.NodePort,
		p.Transport,
		p.logger.WithField("prefix", "local"),
	)

	return nil
}

func (p *PeerFetch) initService() error {
	if !p.Config.NoService && p.Config.ServiceAddr != "" {
		p.Service = service.NewService(
			p.Config.ServiceAddr,
			p.Client,
			p.Metrics.Registry,
			p.logger.WithField("prefix", "service"),
		)
	}
	return nil
}

// Init validates the configuration and builds every component.
func (p *PeerFetch) Init() error {
	p.logger = p.Config.Logger()

	if err := p.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p.Metrics = metrics.NewMetrics()

	if err := p.initStore(); err != nil {
		return err
	}

	if err := p.initTransport(); err != nil {
		return err
	}

	if err := p.initCache(); err != nil {
		return err
	}

	if err := p.initFetcher(); err != nil {
		return err
	}

	if err := p.initClients(); err != nil {
		return err
	}

	if err := p.initService(); err != nil {
		return err
	}

	return nil
}

// Run serves the HTTP API until Shutdown is called. It fails if the service
// is disabled.
func (p *PeerFetch) Run() error {
	if p.Service == nil {
		return fmt.Errorf("service is disabled")
	}

	if _, err := p.Fetcher.EnsureActivePeer(context.Background()); err != nil {
		p.logger.WithError(err).Warn("No active peer yet")
	}

	return p.Service.Serve()
}

// Status reports on the validator whose process status is processStatus.
func (p *PeerFetch) Status(ctx context.Context, processStatus string) (*network.Report, error) {
	return network.Status(ctx, p.Client, p.LocalNode, processStatus)
}

// Shutdown stops the service and closes the cache.
func (p *PeerFetch) Shutdown(ctx context.Context) error {
	if p.Service != nil {
		if err := p.Service.Shutdown(ctx); err != nil {
			p.logger.WithError(err).Error("Stopping service")
		}
	}

	if p.Cache != nil {
		return p.Cache.Close()
	}

	return nil
}
