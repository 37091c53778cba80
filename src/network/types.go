package network

import (
	"math/big"
	"strings"
)

// Paths of the peer queries.
const (
	NewestCyclePath  = "/sync-newest-cycle"
	AccountPath      = "/account/"
	StakePath        = "/stake"
	NetworkStatsPath = "/network-stats"
	NodeInfoPath     = "/nodeinfo"
	NetConfigPath    = "/netconfig"
	LoadPath         = "/load"
	TxStatsPath      = "/tx-stats"
)

// Account types understood by /account.
const (
	NetworkAccountType = 5
	NodeAccountType    = 9
)

// Cache keys.
const (
	CycleDurationKey     = "cycleDuration"
	InitialParametersKey = "initialParameters"
	StakeParamsKey       = "stakeParams"
	NetworkStatsKey      = "networkStats"
	ValidatorVersionsKey = "validatorVersions"
)

// NetworkAccount is the id of the account holding the network-wide
// parameters.
var NetworkAccount = strings.Repeat("0", 64)

// InitialParameters are the network reward parameters.
type InitialParameters struct {
	NodeRewardAmount   *big.Int `json:"nodeRewardAmount"`
	NodeRewardInterval int64    `json:"nodeRewardInterval"`
}

// Versions are the validator versions accepted by the network.
type Versions struct {
	MinVersion    string `json:"minVersion"`
	ActiveVersion string `json:"activeVersion"`
	LatestVersion string `json:"latestVersion"`
}

type accountQuery struct {
	Type int `url:"type,omitempty"`
}

type localNodeInfoQuery struct {
	ReportIntermediateStatus bool `url:"reportIntermediateStatus"`
}

type cycleResponse struct {
	NewestCycle *cycleRecord `json:"newestCycle"`
}

type cycleRecord struct {
	Counter  int64  `json:"counter"`
	Duration *int64 `json:"duration"`
	Start    int64  `json:"start"`
	Marker   string `json:"marker"`
}

type networkAccountResponse struct {
	Account *networkAccount `json:"account"`
}

type networkAccount struct {
	ID   string              `json:"id"`
	Data *networkAccountData `json:"data"`
}

type networkAccountData struct {
	Current *rewardParameters `json:"current"`
}

type rewardParameters struct {
	NodeRewardAmountUsd string `json:"nodeRewardAmountUsd"`
	NodeRewardInterval  string `json:"nodeRewardInterval"`
}

type accountResponse struct {
	Account map[string]interface{} `json:"account"`
}

type stakeResponse struct {
	StakeRequired    string `json:"stakeRequired"`
	StakeRequiredUsd string `json:"stakeRequiredUsd"`
}

type nodeInfoResponse struct {
	NodeInfo map[string]interface{} `json:"nodeInfo"`
}

type netConfigResponse struct {
	Config *netConfig `json:"config"`
}

type netConfig struct {
	Server *serverConfig `json:"server"`
}

type serverConfig struct {
	P2P *Versions `json:"p2p"`
}
