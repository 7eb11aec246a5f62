// Package coordinator is the composition root: it owns startup and
// shutdown order, the shared event bus, and every long-lived subsystem
// (peer registry, transport, routing, sessions, accounting, ledger,
// reward engine), opening storage and building each subsystem in a fixed
// order and tearing them down in reverse on shutdown signal.
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/accounting"
	"github.com/Klingon-tech/networkneuron/internal/config"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/ledger"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/internal/reward"
	"github.com/Klingon-tech/networkneuron/internal/routing"
	"github.com/Klingon-tech/networkneuron/internal/session"
	"github.com/Klingon-tech/networkneuron/internal/storage"
	"github.com/Klingon-tech/networkneuron/internal/transport"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/Klingon-tech/networkneuron/pkg/wire"
)

// Coordinator owns every subsystem of one relay node. Its zero value is
// not usable; build one with New.
type Coordinator struct {
	cfg      *config.Config
	bus      *eventbus.Bus
	identity *crypto.PrivateKey
	localID  types.NodeID

	registryDB   storage.DB
	ledgerDB     storage.DB
	accountingDB storage.DB

	Registry   *registry.Registry
	Transport  *transport.Transport
	Router     *routing.Router
	Sessions   *session.Manager
	Ledger     *ledger.Ledger
	Accounting *accounting.Accounting
	Reward     *reward.Engine

	distributeStop chan struct{}
	distributeWG   sync.WaitGroup
}

// New builds every subsystem in the order required by §4.10: Crypto →
// Codec (pkg/wire is stateless, nothing to construct) → Ledger init
// (recover from disk, seed the reward pool on a fresh ledger) →
// PeerRegistry → Transport → Router → SessionManager → Accounting →
// RewardEngine. It does not yet listen on the network or start
// background loops; call Start for that.
func New(cfg *config.Config) (*Coordinator, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// ── Crypto ──────────────────────────────────────────────────────
	identity, err := loadOrCreateIdentity(cfg.IdentityFile())
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	localID := crypto.NodeIDFromPubKey(identity.PublicKey())

	c := &Coordinator{
		cfg:            cfg,
		bus:            eventbus.New(),
		identity:       identity,
		localID:        localID,
		distributeStop: make(chan struct{}),
	}

	// ── Ledger init ─────────────────────────────────────────────────
	ledgerDB, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		return nil, fmt.Errorf("open ledger storage: %w", err)
	}
	c.ledgerDB = ledgerDB
	ledgerStore := ledger.NewStore(ledgerDB)
	led := ledger.New(identity, types.Amount(cfg.MinStake), 0, ledgerStore)
	if err := led.Recover(); err != nil {
		return nil, fmt.Errorf("recover ledger: %w", err)
	}
	if led.Balance(ledger.RewardPoolAccount) == 0 && len(led.TransactionHistory(nil, 1)) == 0 {
		rewardPool := types.Amount(float64(cfg.InitialSupply) * cfg.RewardPoolFraction)
		led.SeedRewardPool(rewardPool)
		log.Coordinator.Info().
			Uint64("initial_supply", cfg.InitialSupply).
			Uint64("reward_pool", uint64(rewardPool)).
			Msg("seeded fresh ledger")
	}
	c.Ledger = led

	// ── PeerRegistry ────────────────────────────────────────────────
	registryDB, err := storage.NewBadger(cfg.RegistryDir())
	if err != nil {
		return nil, fmt.Errorf("open registry storage: %w", err)
	}
	c.registryDB = registryDB
	reg := registry.New(c.bus, registry.NewStore(registryDB), cfg.KeepaliveInterval, cfg.KeepaliveMissesBeforeQuarantine)
	c.Registry = reg

	// ── Transport ───────────────────────────────────────────────────
	tr, err := transport.New(transport.Config{
		ListenAddr:        cfg.ListenAddr,
		BootstrapPeers:    cfg.BootstrapPeers,
		KeepaliveInterval: cfg.KeepaliveInterval,
		Region:            cfg.Region,
	}, identity, localID, reg, c.bus)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	c.Transport = tr

	// ── Router ──────────────────────────────────────────────────────
	router, err := routing.New(reg, c.bus, cfg.RouteTTL, cfg.RouteCacheMax, c.sendFunc())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	c.Router = router
	tr.SetHandler(c.onEnvelope)
	tr.SetTunnelKeyHandler(router.SetTunnelKey)

	// ── SessionManager ──────────────────────────────────────────────
	c.Sessions = session.New(router, c.bus)

	// ── Accounting ──────────────────────────────────────────────────
	accountingDB, err := storage.NewBadger(cfg.AccountingDir())
	if err != nil {
		return nil, fmt.Errorf("open accounting storage: %w", err)
	}
	c.accountingDB = accountingDB
	acct, err := accounting.New(reg, c.bus, accounting.NewStore(accountingDB))
	if err != nil {
		return nil, fmt.Errorf("create accounting: %w", err)
	}
	c.Accounting = acct

	// ── RewardEngine ────────────────────────────────────────────────
	c.Reward = reward.New(led, acct, c.bus, cfg.RewardRate, types.Amount(cfg.MinStake), types.Amount(cfg.MaxRewardPerDay))

	return c, nil
}

// sendFunc adapts the router's SendFunc to the transport: it wraps the
// forwarded payload, as given, in a DataPacket envelope addressed to the
// next hop. It does not prepend a route_id tag (see tagRoute).
func (c *Coordinator) sendFunc() routing.SendFunc {
	return func(next types.NodeID, payload []byte) error {
		e := wire.NewEnvelope(wire.TypeDataPacket, c.localID, next, payload)
		return c.Transport.Send(next, e)
	}
}

// onEnvelope is the transport's inbound handler: a DataPacket continues
// forwarding along its route via the router; every other type is
// currently outside this package's scope (handshake/heartbeat are handled
// inside internal/transport itself; route request/response belong to the
// administrative API, which resolves routes directly via Router.FindRoute).
func (c *Coordinator) onEnvelope(from types.NodeID, e *wire.Envelope) {
	if e.Type != wire.TypeDataPacket {
		return
	}
	routeID, payload, err := untagRoute(e.Payload)
	if err != nil {
		log.Coordinator.Debug().Err(err).Str("peer", from.String()).Msg("dropped malformed data packet")
		return
	}
	if err := c.Router.Forward(routeID, payload); err != nil {
		log.Coordinator.Debug().Err(err).Str("route_id", routeID).Msg("forward failed")
	}
}

// LocalID returns this node's own identifier.
func (c *Coordinator) LocalID() types.NodeID {
	return c.localID
}

// Bus returns the shared event bus, for administrative API subscribers.
func (c *Coordinator) Bus() *eventbus.Bus {
	return c.bus
}

// Start begins listening for peer connections and the periodic reward
// distribution loop. Subsystems that have no explicit start step
// (registry, router, session manager, accounting) are already live after
// New, since each subscribes to the event bus in its own constructor.
func (c *Coordinator) Start() error {
	if err := c.Transport.Start(); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	log.Coordinator.Info().Str("node_id", c.localID.String()).Str("addr", c.Transport.Addr()).Msg("node started")

	c.distributeWG.Add(1)
	go c.runDistributionLoop()
	return nil
}

func (c *Coordinator) runDistributionLoop() {
	defer c.distributeWG.Done()

	ticker := time.NewTicker(c.cfg.DistributionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.distributeStop:
			return
		case t := <-ticker.C:
			period := t.UTC().Format(time.RFC3339)
			result, err := c.Reward.Distribute(period)
			if err != nil {
				log.Coordinator.Error().Err(err).Str("period", period).Msg("reward distribution failed")
				continue
			}
			log.Coordinator.Info().
				Str("period", period).
				Int("paid", len(result.Paid)).
				Bool("exhausted", result.Exhausted).
				Msg("reward distribution complete")
		}
	}
}

// Stop shuts every subsystem down in the reverse of New's startup order:
// reward loop → accounting → session manager → router → transport →
// registry → ledger, closing each backing store last.
func (c *Coordinator) Stop() error {
	close(c.distributeStop)
	c.distributeWG.Wait()

	c.Accounting.Stop()
	c.Sessions.Stop()
	c.Router.Stop()
	if err := c.Transport.Stop(); err != nil {
		log.Coordinator.Warn().Err(err).Msg("transport stop")
	}

	if err := c.Ledger.Snapshot(); err != nil {
		log.Coordinator.Warn().Err(err).Msg("final ledger snapshot")
	}

	var firstErr error
	for _, db := range []storage.DB{c.accountingDB, c.registryDB, c.ledgerDB} {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	log.Coordinator.Info().Msg("node stopped")
	return firstErr
}
