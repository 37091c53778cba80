package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	client      *network.Client
	router      *mux.Router
	server      *http.Server
	logger      *logrus.Entry
}

// NewService creates a Service answering on bindAddress. If gatherer is not
// nil its metrics are exposed on /metrics.
func NewService(bindAddress string, client *network.Client, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		client:      client,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers(gatherer)

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.router,
	}

	return &service
}

func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering peerfetch API handlers")
	s.router.HandleFunc("/active-peer", s.makeHandler(s.GetActivePeer)).Methods(http.MethodGet)
	s.router.HandleFunc("/params", s.makeHandler(s.GetInitialParameters)).Methods(http.MethodGet)
	s.router.HandleFunc("/node-params/{publicKey}", s.makeHandler(s.GetNodeParameters)).Methods(http.MethodGet)
	s.router.HandleFunc("/account/{address}", s.makeHandler(s.GetAccount)).Methods(http.MethodGet)
	s.router.HandleFunc("/stake", s.makeHandler(s.GetStake)).Methods(http.MethodGet)
	s.router.HandleFunc("/cycle", s.makeHandler(s.GetCycle)).Methods(http.MethodGet)
	s.router.HandleFunc("/network-stats", s.makeHandler(s.GetNetworkStats)).Methods(http.MethodGet)
	s.router.HandleFunc("/versions", s.makeHandler(s.GetVersions)).Methods(http.MethodGet)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call. It returns nil once
// Shutdown has been called.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving peerfetch API")

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	if err != nil {
		s.logger.Error(err)
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetActivePeer returns the active peer. With refresh=true a new one is
// selected first.
func (s *Service) GetActivePeer(w http.ResponseWriter, r *http.Request) {
	fetcher := s.client.Fetcher()

	if r.URL.Query().Get("refresh") == "true" {
		s.Lock()
		_, err := fetcher.RefreshActivePeer(r.Context())
		s.Unlock()
		if err != nil {
			s.fail(w, "Refreshing active peer", err)
			return
		}
	}

	peer, ok := fetcher.ActivePeer()
	if !ok {
		var err error
		if peer, err = fetcher.EnsureActivePeer(r.Context()); err != nil {
			s.fail(w, "Retrieving active peer", err)
			return
		}
	}

	s.writeJSON(w, peer)
}

// GetInitialParameters ...
func (s *Service) GetInitialParameters(w http.ResponseWriter, r *http.Request) {
	params, err := s.client.InitialParameters(r.Context())
	if err != nil {
		s.fail(w, "Retrieving initial parameters", err)
		return
	}

	s.writeJSON(w, params)
}

// GetNodeParameters ...
func (s *Service) GetNodeParameters(w http.ResponseWriter, r *http.Request) {
	publicKey := mux.Vars(r)["publicKey"]

	params, err := s.client.NodeParameters(r.Context(), publicKey)
	if err != nil {
		s.fail(w, "Retrieving node parameters", err)
		return
	}

	s.writeJSON(w, params)
}

// GetAccount ...
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	account, err := s.client.Account(r.Context(), address)
	if err != nil {
		s.fail(w, "Retrieving account", err)
		return
	}

	s.writeJSON(w, account)
}

// GetStake ...
func (s *Service) GetStake(w http.ResponseWriter, r *http.Request) {
	stake, err := s.client.StakeRequirement(r.Context())
	if err != nil {
		s.fail(w, "Retrieving stake requirement", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{"stakeRequired": stake})
}

// GetCycle ...
func (s *Service) GetCycle(w http.ResponseWriter, r *http.Request) {
	duration, err := s.client.CycleDuration(r.Context())
	if err != nil {
		s.fail(w, "Retrieving cycle duration", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{"duration": duration})
}

// GetNetworkStats ...
func (s *Service) GetNetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.client.NetworkStats(r.Context())
	if err != nil {
		s.fail(w, "Retrieving network stats", err)
		return
	}

	s.writeJSON(w, stats)
}

// GetVersions ...
func (s *Service) GetVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.client.ValidatorVersions(r.Context())
	if err != nil {
		s.fail(w, "Retrieving validator versions", err)
		return
	}

	s.writeJSON(w, versions)
}

func (s *Service) fail(w http.ResponseWriter, msg string, err error) {
	s.logger.WithError(err).Error(msg)
	http.Error(w, err.Error(), statusOf(err))
}

// statusOf maps a query error to the status answered to local clients.
func statusOf(err error) int {
	switch {
	case common.IsFetch(err, common.MissingField):
		return http.StatusBadGateway
	case common.IsFetch(err, common.RetriesExhausted),
		common.IsFetch(err, common.NoPeerAvailable),
		common.IsFetch(err, common.SelectionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Encoding response")
	}
}
