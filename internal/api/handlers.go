package api

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/ledger"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/internal/routing"
	"github.com/Klingon-tech/networkneuron/internal/session"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func (s *Server) handleStatus(req *Request) (interface{}, *Error) {
	c := s.coord
	return &StatusResult{
		NodeID:         c.LocalID().String(),
		Addr:           c.Transport.Addr(),
		ActivePeers:    len(c.Registry.ListActive()),
		ActiveRoutes:   len(c.Router.List()),
		ActiveSessions: len(c.Sessions.ListActive()),
	}, nil
}

func (s *Server) handlePeers(req *Request) (interface{}, *Error) {
	peers := s.coord.Registry.ListActive()
	out := make([]PeerResult, len(peers))
	for i, p := range peers {
		out[i] = peerResult(p)
	}
	return &PeersResult{Count: len(out), Peers: out}, nil
}

func peerResult(p *registry.Peer) PeerResult {
	r := PeerResult{
		NodeID:       p.NodeID.String(),
		Address:      p.Address,
		Region:       p.Region,
		Capabilities: p.Capabilities,
		State:        string(p.State),
		Reputation:   p.Reputation,
		Bandwidth: BandwidthResult{
			UploadMbps:   p.Bandwidth.UploadMbps,
			DownloadMbps: p.Bandwidth.DownloadMbps,
			LatencyMs:    p.Bandwidth.LatencyMs,
			UptimePct:    p.Bandwidth.UptimePct,
			CapacityMbps: p.Bandwidth.CapacityMbps,
		},
	}
	if !p.ConnectedAt.IsZero() {
		r.ConnectedAt = p.ConnectedAt.Unix()
	}
	if !p.LastSeen.IsZero() {
		r.LastSeen = p.LastSeen.Unix()
	}
	return r
}

func (s *Server) handleSessions(req *Request) (interface{}, *Error) {
	sessions := s.coord.Sessions.ListActive()
	out := make([]SessionResult, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionResult(sess)
	}
	return &SessionsResult{Count: len(out), Sessions: out}, nil
}

func sessionResult(sess *session.Session) SessionResult {
	r := SessionResult{
		SessionID:        sess.SessionID,
		ClientID:         sess.ClientID,
		RouteID:          sess.RouteID,
		StartedAt:        sess.StartedAt.Unix(),
		BytesTransferred: sess.BytesTransferred,
		Active:           sess.ActiveFlag,
	}
	if !sess.EndedAt.IsZero() {
		r.EndedAt = sess.EndedAt.Unix()
	}
	return r
}

func (s *Server) handleRoutes(req *Request) (interface{}, *Error) {
	routes := s.coord.Router.List()
	out := make([]RouteResult, len(routes))
	for i, rt := range routes {
		out[i] = routeResult(rt)
	}
	return &RoutesResult{Count: len(out), Routes: out}, nil
}

func routeResult(rt *routing.Route) RouteResult {
	hops := make([]string, len(rt.HopList))
	for i, h := range rt.HopList {
		hops[i] = h.String()
	}
	return RouteResult{
		RouteID:       rt.RouteID,
		Hops:          hops,
		LatencyMs:     rt.LatencyMs,
		BandwidthMbps: rt.BandwidthMbps,
		Cost:          rt.Cost,
		Encrypted:     rt.EncryptedFlag,
		ExpiresAt:     rt.ExpiresAt.Unix(),
		BytesUsed:     rt.BytesUsed,
	}
}

func parseRequirements(destStr string, minBandwidth, maxLatency, maxCost float64, regions []string, requireEncryption bool, algorithm string) (types.NodeID, routing.Requirements, *Error) {
	dest, err := types.ParseNodeID(destStr)
	if err != nil {
		return types.NodeID{}, routing.Requirements{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid dest: %v", err)}
	}
	return dest, routing.Requirements{
		MinBandwidth:      minBandwidth,
		MaxLatency:        maxLatency,
		MaxCost:           maxCost,
		Regions:           regions,
		RequireEncryption: requireEncryption,
		Algorithm:         routing.Algorithm(algorithm),
	}, nil
}

func (s *Server) handleFindRoute(req *Request) (interface{}, *Error) {
	var p FindRouteParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	dest, reqs, perr := parseRequirements(p.Dest, p.MinBandwidth, p.MaxLatency, p.MaxCost, p.Regions, p.RequireEncryption, p.Algorithm)
	if perr != nil {
		return nil, perr
	}

	rt, err := s.coord.Router.FindRoute(dest, reqs)
	if err != nil {
		return nil, rpcErrorFor(err, p.Dest)
	}
	return &RoutesResult{Count: 1, Routes: []RouteResult{routeResult(rt)}}, nil
}

func (s *Server) handleCreateSession(req *Request) (interface{}, *Error) {
	var p CreateSessionParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if p.ClientID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "client_id is required"}
	}
	dest, reqs, perr := parseRequirements(p.Dest, p.MinBandwidth, p.MaxLatency, p.MaxCost, p.Regions, p.RequireEncryption, p.Algorithm)
	if perr != nil {
		return nil, perr
	}

	sess, err := s.coord.Sessions.Open(p.ClientID, dest, reqs)
	if err != nil {
		return nil, rpcErrorFor(err, p.ClientID)
	}
	return &CreateSessionResult{Session: sessionResult(sess)}, nil
}

func (s *Server) handleCloseSession(req *Request) (interface{}, *Error) {
	var p SessionIDParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if err := s.coord.Sessions.Close(p.SessionID); err != nil {
		return nil, rpcErrorFor(err, p.SessionID)
	}
	return struct {
		Closed bool `json:"closed"`
	}{true}, nil
}

func (s *Server) handleNodeStats(req *Request) (interface{}, *Error) {
	var p NodeIDParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	node, perr := nodeIDParam(p.NodeID)
	if perr != nil {
		return nil, perr
	}

	snap := s.coord.Accounting.Snapshot(node)
	return &NodeStatsResult{
		NodeID:         node.String(),
		BytesForwarded: snap.BytesForwarded,
		SessionsServed: snap.SessionsServed,
		UptimePct:      snap.Performance.UptimePct,
		AvgLatencyMs:   snap.Performance.AvgLatencyMs,
		Reputation:     snap.Performance.Reputation,
		Balance:        uint64(s.coord.Ledger.Balance(node)),
		Stake:          uint64(s.coord.Ledger.StakeOf(node)),
	}, nil
}

func (s *Server) handleNetworkStats(req *Request) (interface{}, *Error) {
	c := s.coord
	var totalStaked types.Amount
	for _, node := range c.Ledger.EligibleNodes(0) {
		staked, err := totalStaked.SafeAdd(c.Ledger.StakeOf(node))
		if err == nil {
			totalStaked = staked
		}
	}
	return &NetworkStatsResult{
		ActivePeers:    len(c.Registry.ListActive()),
		ActiveRoutes:   len(c.Router.List()),
		ActiveSessions: len(c.Sessions.ListActive()),
		TotalStaked:    uint64(totalStaked),
		RewardPool:     uint64(c.Ledger.Balance(ledger.RewardPoolAccount)),
	}, nil
}

func (s *Server) handleStake(req *Request) (interface{}, *Error) {
	var p StakeParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	node, perr := nodeIDParam(p.NodeID)
	if perr != nil {
		return nil, perr
	}
	tx, err := s.coord.Ledger.Stake(node, types.Amount(p.Amount))
	if err != nil {
		return nil, rpcErrorFor(err, p.NodeID)
	}
	return &StakeResult{TxID: tx.TxID, BalanceBefore: uint64(tx.BalanceBefore), BalanceAfter: uint64(tx.BalanceAfter)}, nil
}

func (s *Server) handleUnstake(req *Request) (interface{}, *Error) {
	var p StakeParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	node, perr := nodeIDParam(p.NodeID)
	if perr != nil {
		return nil, perr
	}
	tx, err := s.coord.Ledger.Unstake(node, types.Amount(p.Amount))
	if err != nil {
		return nil, rpcErrorFor(err, p.NodeID)
	}
	return &StakeResult{TxID: tx.TxID, BalanceBefore: uint64(tx.BalanceBefore), BalanceAfter: uint64(tx.BalanceAfter)}, nil
}

func (s *Server) handleCalculateReward(req *Request) (interface{}, *Error) {
	var p RewardPeriodParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	node, perr := nodeIDParam(p.NodeID)
	if perr != nil {
		return nil, perr
	}
	amount := s.coord.Reward.CalculateReward(node)
	return &CalculateRewardResult{NodeID: node.String(), Amount: uint64(amount)}, nil
}

func (s *Server) handleDistributeRewards(req *Request) (interface{}, *Error) {
	var p RewardPeriodParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if p.Period == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "period is required"}
	}
	result, err := s.coord.Reward.Distribute(p.Period)
	if err != nil {
		return nil, rpcErrorFor(err, p.Period)
	}

	paid := make([]PaidResult, len(result.Paid))
	for i, pd := range result.Paid {
		paid[i] = PaidResult{NodeID: pd.NodeID.String(), Amount: uint64(pd.Amount)}
	}
	skipped := make([]string, len(result.Skipped))
	for i, n := range result.Skipped {
		skipped[i] = n.String()
	}
	return &DistributeRewardsResult{Period: result.Period, Paid: paid, Exhausted: result.Exhausted, Skipped: skipped}, nil
}

func (s *Server) handleTransactionHistory(req *Request) (interface{}, *Error) {
	var p TransactionHistoryParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}

	var nodePtr *types.NodeID
	if p.NodeID != "" {
		node, perr := nodeIDParam(p.NodeID)
		if perr != nil {
			return nil, perr
		}
		nodePtr = &node
	}

	txs := s.coord.Ledger.TransactionHistory(nodePtr, p.Limit)
	out := make([]TransactionResult, len(txs))
	for i, tx := range txs {
		out[i] = TransactionResult{
			TxID:          tx.TxID,
			Kind:          string(tx.Kind),
			NodeID:        tx.Node.String(),
			Amount:        uint64(tx.Amount),
			BalanceBefore: uint64(tx.BalanceBefore),
			BalanceAfter:  uint64(tx.BalanceAfter),
			At:            tx.At.Unix(),
		}
	}
	return &TransactionHistoryResult{Count: len(out), Transactions: out}, nil
}

func (s *Server) handleLeaderboard(req *Request) (interface{}, *Error) {
	var p LeaderboardParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}

	var entries []LeaderboardEntry
	switch p.Metric {
	case "stake":
		for _, node := range s.coord.Ledger.EligibleNodes(0) {
			entries = append(entries, LeaderboardEntry{NodeID: node.String(), Value: float64(s.coord.Ledger.StakeOf(node))})
		}
	case "bandwidth":
		for _, peer := range s.coord.Registry.ListActive() {
			entries = append(entries, LeaderboardEntry{NodeID: peer.NodeID.String(), Value: peer.Bandwidth.CapacityMbps})
		}
	case "rewards":
		totals := make(map[types.NodeID]float64)
		for _, tx := range s.coord.Ledger.TransactionHistory(nil, 0) {
			if tx.Kind == ledger.TxReward {
				totals[tx.Node] += float64(tx.Amount)
			}
		}
		for node, value := range totals {
			entries = append(entries, LeaderboardEntry{NodeID: node.String(), Value: value})
		}
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown metric %q: want rewards, stake, or bandwidth", p.Metric)}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
	if p.Limit > 0 && len(entries) > p.Limit {
		entries = entries[:p.Limit]
	}
	return &LeaderboardResult{Metric: p.Metric, Entries: entries}, nil
}

func nodeIDParam(raw string) (types.NodeID, *Error) {
	node, err := types.ParseNodeID(raw)
	if err != nil {
		return types.NodeID{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid node_id: %v", err)}
	}
	return node, nil
}

// rpcErrorFor translates a typed internal error into a JSON-RPC error,
// per §7's surfacing policy: route/session/ledger errors surface to the
// caller with their kind and subject.
func rpcErrorFor(err error, subject string) *Error {
	var kind errs.Kind
	if e, ok := err.(*errs.Error); ok {
		kind = e.Kind
	}
	switch kind {
	case errs.RouteNotFound, errs.SessionNotFound:
		return &Error{Code: CodeNotFound, Message: err.Error(), Data: subject}
	case errs.LedgerInsufficientBalance, errs.LedgerInsufficientStake, errs.LedgerMinStakeNotMet, errs.LedgerInsufficientRewardPool:
		return &Error{Code: CodeConflict, Message: err.Error(), Data: subject}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error(), Data: subject}
	}
}
