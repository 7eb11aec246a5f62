package api

// JSON-RPC 2.0 error codes, plus NotFound/Conflict reserved in the
// -32000..-32099 server error range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeConflict       = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// FindRouteParam is used by find_route.
type FindRouteParam struct {
	Dest              string   `json:"dest"`
	MinBandwidth      float64  `json:"min_bandwidth,omitempty"`
	MaxLatency        float64  `json:"max_latency,omitempty"`
	MaxCost           float64  `json:"max_cost,omitempty"`
	Regions           []string `json:"regions,omitempty"`
	RequireEncryption bool     `json:"require_encryption,omitempty"`
	Algorithm         string   `json:"algorithm,omitempty"`
}

// CreateSessionParam is used by create_session.
type CreateSessionParam struct {
	ClientID          string   `json:"client_id"`
	Dest              string   `json:"dest"`
	MinBandwidth      float64  `json:"min_bandwidth,omitempty"`
	MaxLatency        float64  `json:"max_latency,omitempty"`
	MaxCost           float64  `json:"max_cost,omitempty"`
	Regions           []string `json:"regions,omitempty"`
	RequireEncryption bool     `json:"require_encryption,omitempty"`
	Algorithm         string   `json:"algorithm,omitempty"`
}

// SessionIDParam is used by close_session.
type SessionIDParam struct {
	SessionID string `json:"session_id"`
}

// NodeIDParam is used by node_stats.
type NodeIDParam struct {
	NodeID string `json:"node_id"`
}

// StakeParam is used by stake and unstake.
type StakeParam struct {
	NodeID string `json:"node_id"`
	Amount uint64 `json:"amount"`
}

// RewardPeriodParam is used by calculate_reward and distribute_rewards.
type RewardPeriodParam struct {
	NodeID string `json:"node_id,omitempty"`
	Period string `json:"period"`
}

// TransactionHistoryParam is used by transaction_history.
type TransactionHistoryParam struct {
	NodeID string `json:"node_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// LeaderboardParam is used by leaderboard.
type LeaderboardParam struct {
	Metric string `json:"metric"`
	Limit  int    `json:"limit,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// StatusResult is returned by status.
type StatusResult struct {
	NodeID         string `json:"node_id"`
	Addr           string `json:"addr"`
	ActivePeers    int    `json:"active_peers"`
	ActiveRoutes   int    `json:"active_routes"`
	ActiveSessions int    `json:"active_sessions"`
}

// PeerResult describes one peer for peers().
type PeerResult struct {
	NodeID       string          `json:"node_id"`
	Address      string          `json:"address"`
	Region       string          `json:"region"`
	Capabilities []string        `json:"capabilities,omitempty"`
	State        string          `json:"state"`
	Reputation   float64         `json:"reputation"`
	Bandwidth    BandwidthResult `json:"bandwidth"`
	ConnectedAt  int64           `json:"connected_at,omitempty"`
	LastSeen     int64           `json:"last_seen,omitempty"`
}

// BandwidthResult mirrors registry.BandwidthProfile for RPC responses.
type BandwidthResult struct {
	UploadMbps   float64 `json:"upload_mbps"`
	DownloadMbps float64 `json:"download_mbps"`
	LatencyMs    float64 `json:"latency_ms"`
	UptimePct    float64 `json:"uptime_pct"`
	CapacityMbps float64 `json:"capacity_mbps"`
}

// PeersResult is returned by peers().
type PeersResult struct {
	Count int          `json:"count"`
	Peers []PeerResult `json:"peers"`
}

// SessionResult describes one session for sessions().
type SessionResult struct {
	SessionID        string `json:"session_id"`
	ClientID         string `json:"client_id"`
	RouteID          string `json:"route_id"`
	StartedAt        int64  `json:"started_at"`
	EndedAt          int64  `json:"ended_at,omitempty"`
	BytesTransferred uint64 `json:"bytes_transferred"`
	Active           bool   `json:"active"`
}

// SessionsResult is returned by sessions().
type SessionsResult struct {
	Count    int             `json:"count"`
	Sessions []SessionResult `json:"sessions"`
}

// RouteResult describes one route for routes().
type RouteResult struct {
	RouteID       string   `json:"route_id"`
	Hops          []string `json:"hops"`
	LatencyMs     float64  `json:"latency_ms"`
	BandwidthMbps float64  `json:"bandwidth_mbps"`
	Cost          float64  `json:"cost"`
	Encrypted     bool     `json:"encrypted"`
	ExpiresAt     int64    `json:"expires_at"`
	BytesUsed     uint64   `json:"bytes_used"`
}

// RoutesResult is returned by routes() and find_route.
type RoutesResult struct {
	Count  int           `json:"count"`
	Routes []RouteResult `json:"routes"`
}

// CreateSessionResult is returned by create_session.
type CreateSessionResult struct {
	Session SessionResult `json:"session"`
}

// NodeStatsResult is returned by node_stats.
type NodeStatsResult struct {
	NodeID         string  `json:"node_id"`
	BytesForwarded uint64  `json:"bytes_forwarded"`
	SessionsServed uint64  `json:"sessions_served"`
	UptimePct      float64 `json:"uptime_pct"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	Reputation     float64 `json:"reputation"`
	Balance        uint64  `json:"balance"`
	Stake          uint64  `json:"stake"`
}

// NetworkStatsResult is returned by network_stats.
type NetworkStatsResult struct {
	ActivePeers    int    `json:"active_peers"`
	ActiveRoutes   int    `json:"active_routes"`
	ActiveSessions int    `json:"active_sessions"`
	TotalStaked    uint64 `json:"total_staked"`
	RewardPool     uint64 `json:"reward_pool"`
}

// StakeResult is returned by stake and unstake.
type StakeResult struct {
	TxID          string `json:"tx_id"`
	BalanceBefore uint64 `json:"balance_before"`
	BalanceAfter  uint64 `json:"balance_after"`
}

// CalculateRewardResult is returned by calculate_reward.
type CalculateRewardResult struct {
	NodeID string `json:"node_id"`
	Amount uint64 `json:"amount"`
}

// DistributeRewardsResult is returned by distribute_rewards.
type DistributeRewardsResult struct {
	Period    string       `json:"period"`
	Paid      []PaidResult `json:"paid"`
	Exhausted bool         `json:"exhausted"`
	Skipped   []string     `json:"skipped,omitempty"`
}

// PaidResult describes one node's payout within a distribution run.
type PaidResult struct {
	NodeID string `json:"node_id"`
	Amount uint64 `json:"amount"`
}

// TransactionResult describes one ledger transaction.
type TransactionResult struct {
	TxID          string `json:"tx_id"`
	Kind          string `json:"kind"`
	NodeID        string `json:"node_id"`
	Amount        uint64 `json:"amount"`
	BalanceBefore uint64 `json:"balance_before"`
	BalanceAfter  uint64 `json:"balance_after"`
	At            int64  `json:"at"`
}

// TransactionHistoryResult is returned by transaction_history.
type TransactionHistoryResult struct {
	Count        int                 `json:"count"`
	Transactions []TransactionResult `json:"transactions"`
}

// LeaderboardEntry describes one node's position on a leaderboard.
type LeaderboardEntry struct {
	NodeID string  `json:"node_id"`
	Value  float64 `json:"value"`
}

// LeaderboardResult is returned by leaderboard.
type LeaderboardResult struct {
	Metric  string             `json:"metric"`
	Entries []LeaderboardEntry `json:"entries"`
}
