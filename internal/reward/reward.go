// Package reward computes and distributes stake-weighted rewards from the
// token ledger's reward pool, on a periodic schedule driven by whoever
// calls Distribute (the coordinator's distribution timer, or the
// administrative API's distribute_rewards operation).
package reward

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/accounting"
	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/ledger"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// State is the engine's position in one distribution run, grounded on the
// teacher's PoA validator-turn handling in internal/consensus/poa.go: a
// small named state progression rather than a free-running goroutine.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StatePaying     State = "paying"
	StateFinalizing State = "finalizing"
)

// bytesPerMB is the unit §4.9's example reward math is expressed in:
// reward_rate is tokens per megabyte forwarded, not tokens per byte.
const bytesPerMB = 1_000_000.0

// Paid is one node's outcome within a distribution run.
type Paid struct {
	NodeID types.NodeID
	Amount types.Amount
}

// Result is the outcome of one Distribute call.
type Result struct {
	Period    string
	Paid      []Paid
	Exhausted bool // true if the reward pool ran out mid-run
	Skipped   []types.NodeID
}

// Engine is the single owner of reward computation and distribution. It
// reads stakes from the ledger, reads and consumes activity snapshots from
// accounting, and credits rewards back through the ledger.
type Engine struct {
	mu    sync.Mutex
	state State

	ledger *ledger.Ledger
	acct   *accounting.Accounting
	bus    *eventbus.Bus

	rewardRate      float64
	minStake        types.Amount
	maxRewardPerDay types.Amount
}

// New returns a reward Engine. rewardRate is tokens per megabyte forwarded;
// minStake is both the eligibility floor and the stake_mult denominator;
// maxRewardPerDay clamps any single node's per-period reward.
func New(led *ledger.Ledger, acct *accounting.Accounting, bus *eventbus.Bus, rewardRate float64, minStake, maxRewardPerDay types.Amount) *Engine {
	return &Engine{
		state:           StateIdle,
		ledger:          led,
		acct:            acct,
		bus:             bus,
		rewardRate:      rewardRate,
		minStake:        minStake,
		maxRewardPerDay: maxRewardPerDay,
	}
}

// State reports the engine's current position in a distribution run.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CalculateReward computes node's reward under the current frozen
// snapshot of its accounting counters and live stake, without crediting
// anything. It is the read-only half of the formula Distribute applies.
func (e *Engine) CalculateReward(node types.NodeID) types.Amount {
	snap := e.acct.Snapshot(node)
	stake := e.ledger.StakeOf(node)
	return e.reward(snap, stake)
}

// reward applies §4.9's formula to a frozen snapshot and stake:
//
//	base         = snap.bytes_mb * reward_rate
//	stake_mult   = min(1 + (stake/min_stake)*0.5, 2.0)
//	uptime_bonus = performance.uptime / 100
//	latency_bonus = max(0, 1 - performance.avg_latency/1000)
//	raw          = base * stake_mult * uptime_bonus * latency_bonus * max(sessions, 1)
//	amount       = min(raw, max_reward_per_day)
func (e *Engine) reward(snap accounting.Snapshot, stake types.Amount) types.Amount {
	if e.minStake == 0 || stake < e.minStake {
		return 0
	}

	bytesMB := float64(snap.BytesForwarded) / bytesPerMB
	base := bytesMB * e.rewardRate

	stakeMult := 1 + (float64(stake)/float64(e.minStake))*0.5
	if stakeMult > 2.0 {
		stakeMult = 2.0
	}

	uptimeBonus := snap.Performance.UptimePct / 100
	latencyBonus := 1 - snap.Performance.AvgLatencyMs/1000
	if latencyBonus < 0 {
		latencyBonus = 0
	}

	sessions := float64(snap.SessionsServed)
	if sessions < 1 {
		sessions = 1
	}

	raw := base * stakeMult * uptimeBonus * latencyBonus * sessions
	if raw < 0 {
		raw = 0
	}
	if raw > float64(e.maxRewardPerDay) {
		raw = float64(e.maxRewardPerDay)
	}
	return types.Amount(math.Round(raw))
}

// Distribute runs one distribution over period, following §4.9's recipe:
// collect eligible nodes in stable order, compute each reward against a
// snapshot frozen at collection time, then pay each node atomically. If
// the reward pool runs dry mid-run, the remaining nodes for this period
// are skipped (not queued) and RewardPoolExhausted is published; rewards
// already paid are not rolled back.
func (e *Engine) Distribute(period string) (Result, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return Result{}, errs.New(errs.Internal, period, fmt.Errorf("distribution already in progress"))
	}
	e.state = StateCollecting
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()
	}()

	nodes := e.ledger.EligibleNodes(e.minStake)

	type computed struct {
		node   types.NodeID
		amount types.Amount
		snap   accounting.Snapshot
	}
	plan := make([]computed, 0, len(nodes))
	for _, node := range nodes {
		snap := e.acct.Snapshot(node)
		stake := e.ledger.StakeOf(node)
		amount := e.reward(snap, stake)
		if amount == 0 {
			continue
		}
		plan = append(plan, computed{node: node, amount: amount, snap: snap})
	}

	e.mu.Lock()
	e.state = StatePaying
	e.mu.Unlock()

	result := Result{Period: period}
	for i, c := range plan {
		if e.ledger.Balance(ledger.RewardPoolAccount) < c.amount {
			result.Exhausted = true
			for _, remaining := range plan[i:] {
				result.Skipped = append(result.Skipped, remaining.node)
			}
			e.publish(eventbus.Event{Kind: eventbus.RewardPoolExhausted, Period: period, At: now()})
			log.Reward.Warn().Str("period", period).Int("skipped", len(result.Skipped)).Msg("reward pool exhausted")
			break
		}

		if _, err := e.ledger.CreditReward(c.node, c.amount); err != nil {
			log.Reward.Error().Err(err).Str("node_id", c.node.String()).Msg("credit reward")
			result.Skipped = append(result.Skipped, c.node)
			continue
		}
		e.acct.Consume(c.node, c.snap.BytesForwarded, c.snap.SessionsServed)

		result.Paid = append(result.Paid, Paid{NodeID: c.node, Amount: c.amount})
		e.publish(eventbus.Event{Kind: eventbus.RewardDistributed, NodeID: c.node, Amount: uint64(c.amount), Period: period, At: now()})
	}

	e.mu.Lock()
	e.state = StateFinalizing
	e.mu.Unlock()

	return result, nil
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

var now = time.Now
