package peerfetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/config"
	"github.com/mosaicnetworks/peerfetch/src/discovery"
	"github.com/mosaicnetworks/peerfetch/src/network"
	"github.com/mosaicnetworks/peerfetch/src/testnet"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, nw *testnet.Network, dataDir string) *config.Config {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.SetDataDir(dataDir)
	conf.NoService = true
	for _, a := range nw.Archivers {
		conf.Archivers = append(conf.Archivers, a.BootstrapPeer())
	}
	return conf
}

func TestInitInvalidConfig(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.SetDataDir(t.TempDir())

	pf := NewPeerFetch(conf)
	require.Error(t, pf.Init())
}

func TestActivePeerSurvivesRestart(t *testing.T) {
	nw := testnet.NewNetwork(t, 1, 2)
	nw.HandleJSON(network.NodeInfoPath, map[string]interface{}{
		"nodeInfo": map[string]interface{}{"status": "active"},
	})

	dataDir := t.TempDir()

	pf := NewPeerFetch(newTestConfig(t, nw, dataDir))
	require.NoError(t, pf.Init())
	require.Nil(t, pf.Service)

	selected, err := pf.Fetcher.EnsureActivePeer(context.Background())
	require.NoError(t, err)
	require.NoError(t, pf.Shutdown(context.Background()))

	_, err = os.Stat(filepath.Join(dataDir, "active-peer.json"))
	require.NoError(t, err)

	listed := nw.ArchiverHits(discovery.NodeListPath)

	// a restarted client picks up the persisted peer without selecting
	restarted := NewPeerFetch(newTestConfig(t, nw, dataDir))
	require.NoError(t, restarted.Init())
	defer restarted.Shutdown(context.Background())

	loaded, err := restarted.Fetcher.EnsureActivePeer(context.Background())
	require.NoError(t, err)
	require.Equal(t, selected, loaded)
	require.Equal(t, listed, nw.ArchiverHits(discovery.NodeListPath))

	info, err := restarted.Client.NodeInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "active", info["status"])
}

func TestCacheStore(t *testing.T) {
	nw := testnet.NewNetwork(t, 1, 1)
	nw.HandleJSON(network.NewestCyclePath, map[string]interface{}{
		"newestCycle": map[string]interface{}{"duration": 60},
	})

	dataDir := t.TempDir()

	conf := newTestConfig(t, nw, dataDir)
	conf.CacheStore = true

	pf := NewPeerFetch(conf)
	require.NoError(t, pf.Init())

	d, err := pf.Client.CycleDuration(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(60), d)
	require.NoError(t, pf.Shutdown(context.Background()))

	_, err = os.Stat(filepath.Join(dataDir, config.DefaultBadgerFile))
	require.NoError(t, err)

	conf = newTestConfig(t, nw, dataDir)
	conf.CacheStore = true

	restarted := NewPeerFetch(conf)
	require.NoError(t, restarted.Init())
	defer restarted.Shutdown(context.Background())

	d, err = restarted.Client.CycleDuration(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(60), d)
	require.Equal(t, 1, nw.PeerHits(network.NewestCyclePath))
}

func TestStatusStopped(t *testing.T) {
	nw := testnet.NewNetwork(t, 1, 1)
	nw.HandleJSON(network.NewestCyclePath, map[string]interface{}{
		"newestCycle": map[string]interface{}{"duration": 60},
	})
	nw.HandleJSON(network.StakePath, map[string]interface{}{"stakeRequired": "0x1"})
	nw.HandleJSON(network.NetConfigPath, map[string]interface{}{
		"config": map[string]interface{}{
			"server": map[string]interface{}{
				"p2p": map[string]interface{}{"activeVersion": "2.0.0"},
			},
		},
	})

	pf := NewPeerFetch(newTestConfig(t, nw, t.TempDir()))
	require.NoError(t, pf.Init())
	defer pf.Shutdown(context.Background())

	report, err := pf.Status(context.Background(), network.StoppedStatus)
	require.NoError(t, err)
	require.Equal(t, "2.0.0", report.Versions.ActiveVersion)
	require.Nil(t, report.Load)
}

func TestRunWithoutService(t *testing.T) {
	nw := testnet.NewNetwork(t, 1, 1)

	pf := NewPeerFetch(newTestConfig(t, nw, t.TempDir()))
	require.NoError(t, pf.Init())
	defer pf.Shutdown(context.Background())

	require.Error(t, pf.Run())
}
