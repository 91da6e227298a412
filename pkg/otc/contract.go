package otc

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/chain"
	"github.com/otcer/otcer/pkg/util"
)

const contractLabel = "otcer"

// Config is the instantiation configuration of the trade engine.
type Config struct {
	Owner        common.Address
	FeeCollector common.Address
	Fee          asset.Bundle
	FeeTiming    FeeTiming
}

func (cfg Config) Validate() error {
	if cfg.Owner == (common.Address{}) {
		return fmt.Errorf("missing owner address")
	}
	if cfg.FeeCollector == (common.Address{}) {
		return fmt.Errorf("missing fee collector address")
	}
	if !cfg.FeeTiming.Valid() {
		return fmt.Errorf("bad fee timing %q", cfg.FeeTiming)
	}
	return validateFeeSchedule(cfg.Fee)
}

// Contract is the OTC trade engine. A creator escrows an offer bundle and
// declares an ask bundle; any qualifying counterparty settles the trade
// atomically by supplying the ask. Each external call runs inside one
// ledger transaction, so either the whole escrow/settlement happens or
// nothing does.
//
// mu serializes the mutating entry points: the status precondition a call
// observes must still hold when its settlement batch commits, and the API
// server invokes these concurrently.
type Contract struct {
	mu     sync.Mutex
	cfg    Config
	addr   common.Address
	ledger *chain.Ledger
	store  *PositionStore
	clock  util.Clock
	log    *zap.SugaredLogger

	// lifecycle hooks for the API event feed
	OnPositionCreated  func(*Position)
	OnPositionExecuted func(*Position)
}

// NewContract instantiates the engine. Fails on invalid configuration.
func NewContract(cfg Config, ledger *chain.Ledger, store *PositionStore, clock util.Clock, log *zap.SugaredLogger) (*Contract, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	c := &Contract{
		cfg:    cfg,
		addr:   chain.ContractAddress(contractLabel),
		ledger: ledger,
		store:  store,
		clock:  clock,
		log:    log,
	}
	log.Infow("otc_instantiated",
		"addr", c.addr.Hex(),
		"owner", cfg.Owner.Hex(),
		"fee_collector", cfg.FeeCollector.Hex(),
		"fee_items", len(cfg.Fee),
		"fee_timing", string(cfg.FeeTiming))
	return c, nil
}

// Address returns the engine's ledger address (the escrow custodian).
func (c *Contract) Address() common.Address { return c.addr }

// CreateOtc opens a position. Attached coins must exactly equal the offer's
// native portion plus, when the fee is charged on creation, the fee
// schedule's native portion. Token offer legs are pulled from the sender
// into escrow within the same transaction; any leg failing aborts the
// whole request.
func (c *Contract) CreateOtc(sender common.Address, msg CreateOtcMsg, attached asset.Coins) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := msg.Offer.Validate(); err != nil {
		return 0, fmt.Errorf("%w: offer: %v", ErrInvalidBundle, err)
	}
	if err := msg.Ask.Validate(); err != nil {
		return 0, fmt.Errorf("%w: ask: %v", ErrInvalidBundle, err)
	}

	chargeFee := c.cfg.FeeTiming == FeeOnCreate
	required := requiredCoins(msg.Offer, c.cfg.Fee, chargeFee)
	if !attached.Equal(required) {
		return 0, fmt.Errorf("%w: attached %s, required %s", ErrFundsMismatch, attached, required)
	}

	// The id is allocated before the transfers run and burned if they
	// fail; ids are never reused.
	id, err := c.store.NextID()
	if err != nil {
		return 0, err
	}

	pos := &Position{
		ID:        id,
		Creator:   sender,
		Executor:  msg.Executor,
		Offer:     msg.Offer,
		Ask:       msg.Ask,
		Status:    Active,
		CreatedAt: c.clock.Now().UnixMilli(),
	}

	err = c.ledger.Call(sender, c.addr, attached, func(tx *chain.Tx) error {
		// native offer legs are already in custody via attached funds;
		// pull the token legs into escrow
		for _, item := range msg.Offer {
			if item.Kind == asset.Native {
				continue
			}
			if err := tx.ExecuteAs(c.addr, item.TransferTo(sender, c.addr)); err != nil {
				return err
			}
		}
		if chargeFee {
			for _, tr := range feeTransfers(c.cfg.Fee, c.addr, sender, c.cfg.FeeCollector) {
				if err := tx.ExecuteAs(c.addr, tr); err != nil {
					return err
				}
			}
		}
		// the record rides the same batch as the escrow moves: both land
		// or neither does
		return c.store.SaveInTx(tx, pos)
	})
	if err != nil {
		c.log.Warnw("create_otc_rejected", "id", id, "creator", sender.Hex(), "err", err)
		return 0, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}
	c.store.remember(pos)

	c.log.Infow("position_created",
		"id", id,
		"creator", sender.Hex(),
		"offer_items", len(msg.Offer),
		"ask_items", len(msg.Ask))
	if c.OnPositionCreated != nil {
		c.OnPositionCreated(pos)
	}
	return id, nil
}

// ExecuteOtc settles an active position: the escrowed offer goes to the
// sender, the ask goes to the creator, and the fee (when charged on
// execution) goes to the collector, in one atomic batch with the status
// transition.
func (c *Contract) ExecuteOtc(sender common.Address, msg ExecuteOtcMsg, attached asset.Coins) (*Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Get(msg.ID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPositionNotFound, msg.ID)
	}
	if pos.Status != Active {
		return nil, fmt.Errorf("%w: id %d is %s", ErrPositionNotActive, msg.ID, pos.Status)
	}
	if !pos.MayExecute(sender) {
		return nil, fmt.Errorf("%w: position %d restricted to %s", ErrUnauthorized, msg.ID, pos.Executor.Hex())
	}

	chargeFee := c.cfg.FeeTiming == FeeOnExecute
	required := requiredCoins(pos.Ask, c.cfg.Fee, chargeFee)
	if !attached.Equal(required) {
		return nil, fmt.Errorf("%w: attached %s, required %s", ErrFundsMismatch, attached, required)
	}

	settled := *pos
	settled.Status = Executed
	settled.ExecutedAt = c.clock.Now().UnixMilli()

	err = c.ledger.Call(sender, c.addr, attached, func(tx *chain.Tx) error {
		// release the escrowed offer to the executor
		for _, item := range pos.Offer {
			if err := tx.ExecuteAs(c.addr, item.TransferTo(c.addr, sender)); err != nil {
				return err
			}
		}
		// route the ask to the creator: native legs out of the attached
		// custody, token legs pulled from the executor
		for _, item := range pos.Ask {
			from := sender
			if item.Kind == asset.Native {
				from = c.addr
			}
			if err := tx.ExecuteAs(c.addr, item.TransferTo(from, pos.Creator)); err != nil {
				return err
			}
		}
		if chargeFee {
			for _, tr := range feeTransfers(c.cfg.Fee, c.addr, sender, c.cfg.FeeCollector) {
				if err := tx.ExecuteAs(c.addr, tr); err != nil {
					return err
				}
			}
		}
		// the Executed record commits with the settlement: a drained escrow
		// can never be left marked active on disk
		return c.store.SaveInTx(tx, &settled)
	})
	if err != nil {
		c.log.Warnw("execute_otc_rejected", "id", msg.ID, "sender", sender.Hex(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}
	c.store.remember(&settled)

	c.log.Infow("position_executed", "id", msg.ID, "executor", sender.Hex(), "creator", pos.Creator.Hex())
	if c.OnPositionExecuted != nil {
		c.OnPositionExecuted(&settled)
	}
	return &settled, nil
}

// Position returns the record for id regardless of status; absent ids fail
// with ErrPositionNotFound.
func (c *Contract) Position(id uint64) (*Position, error) {
	pos, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPositionNotFound, id)
	}
	return pos, nil
}

// RecentPositions lists up to limit positions, newest first.
func (c *Contract) RecentPositions(limit int) ([]*Position, error) {
	return c.store.Recent(limit)
}
