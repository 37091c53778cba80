package network

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/net"
	"github.com/sirupsen/logrus"
)

// StoppedStatus is the process status of a local node that is not running.
const StoppedStatus = "stopped"

// LocalNode queries the status endpoint of the locally-run node. There is no
// peer selection and no retry: errors are returned as they occur.
type LocalNode struct {
	ip        string
	port      int
	transport net.Transport
	logger    *logrus.Entry
}

// NewLocalNode creates a LocalNode for the node listening on ip:port.
func NewLocalNode(ip string, port int, transport net.Transport, logger *logrus.Entry) *LocalNode {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &LocalNode{
		ip:        ip,
		port:      port,
		transport: transport,
		logger:    logger,
	}
}

// URL returns the address of path on the local node.
func (l *LocalNode) URL(path string) string {
	return fmt.Sprintf("http://%s:%d%s", l.ip, l.port, path)
}

func (l *LocalNode) get(ctx context.Context, path string, params interface{}, out interface{}) error {
	if _, err := l.transport.Get(ctx, l.URL(path), params, out); err != nil {
		l.logger.WithError(err).WithField("path", path).Debug("Local node query failed")
		return common.NewFetchErr(path, common.Transport, err)
	}
	return nil
}

// NodeInfo returns the node info of the local node, including its
// intermediate status while it joins the network.
func (l *LocalNode) NodeInfo(ctx context.Context) (map[string]interface{}, error) {
	var res nodeInfoResponse
	if err := l.get(ctx, NodeInfoPath, localNodeInfoQuery{ReportIntermediateStatus: true}, &res); err != nil {
		return nil, err
	}

	if res.NodeInfo == nil {
		return nil, missing(NodeInfoPath, "nodeInfo")
	}

	return res.NodeInfo, nil
}

// Load returns the load reported by the local node.
func (l *LocalNode) Load(ctx context.Context) (map[string]interface{}, error) {
	var res map[string]interface{}
	if err := l.get(ctx, LoadPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// TxStats returns the transaction statistics of the local node.
func (l *LocalNode) TxStats(ctx context.Context) (map[string]interface{}, error) {
	var res map[string]interface{}
	if err := l.get(ctx, TxStatsPath, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Report is the status of a validator: what the network requires of it and,
// when it runs, what the local node reports about itself.
type Report struct {
	ProcessStatus string                 `json:"processStatus"`
	StakeRequired *big.Int               `json:"stakeRequired"`
	Versions      *Versions              `json:"versions"`
	NodeInfo      map[string]interface{} `json:"nodeInfo,omitempty"`
	Load          map[string]interface{} `json:"load,omitempty"`
	TxStats       map[string]interface{} `json:"txStats,omitempty"`
}

// Running reports whether the local node process was running.
func (r *Report) Running() bool {
	return r.ProcessStatus != StoppedStatus
}

// Status builds the Report of a validator whose process status is
// processStatus. The local node is only queried when the status is not
// "stopped".
func Status(ctx context.Context, c *Client, local *LocalNode, processStatus string) (*Report, error) {
	stake, err := c.StakeRequirement(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := c.ValidatorVersions(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ProcessStatus: processStatus,
		StakeRequired: stake,
		Versions:      versions,
	}

	if !report.Running() {
		return report, nil
	}

	if report.NodeInfo, err = local.NodeInfo(ctx); err != nil {
		return nil, err
	}

	if report.Load, err = local.Load(ctx); err != nil {
		return nil, err
	}

	if report.TxStats, err = local.TxStats(ctx); err != nil {
		return nil, err
	}

	return report, nil
}
