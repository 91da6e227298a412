// Package registry is the stub of the administrative register peer
// contract. It holds no trading logic: instantiation is acknowledged and
// recorded, every other entry point is unavailable. Callers must not
// assume any behavior beyond the instantiation ack.
package registry

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by every entry point except Instantiate.
var ErrUnavailable = errors.New("registry: not implemented")

type InstantiateMsg struct {
	Owner common.Address `json:"owner"`
}

type Contract struct {
	owner common.Address
	log   *zap.SugaredLogger
}

// Instantiate acknowledges creation of the register record.
func Instantiate(msg InstantiateMsg, log *zap.SugaredLogger) (*Contract, error) {
	if msg.Owner == (common.Address{}) {
		return nil, errors.New("registry: missing owner")
	}
	log.Infow("registry_instantiated", "owner", msg.Owner.Hex())
	return &Contract{owner: msg.Owner, log: log}, nil
}

func (c *Contract) Owner() common.Address { return c.owner }

func (c *Contract) Execute(_ json.RawMessage) error { return ErrUnavailable }

func (c *Contract) Query(_ json.RawMessage) ([]byte, error) { return nil, ErrUnavailable }

func (c *Contract) Migrate(_ string) error { return ErrUnavailable }
