package relayergame

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/darwinia-network/bridge-relay/ledger"
)

// key prefixes
const (
	prefixGame = int64(iota + 1)
	prefixClose
	prefixBond
	prefixMeta
)

const (
	metaFinalized = "finalized"
	metaSeq       = "close_seq"
)

// closeEntry schedules the close of one game round.
type closeEntry struct {
	Block  uint64
	Seq    uint64
	GameID uint64
	Round  uint32
}

// store keeps game state in a tm-db database. Reads go to the database;
// writes go to a batch so one operation commits atomically.
type store struct {
	db dbm.DB
}

func (s *store) game(id uint64) (*Game, bool, error) {
	bz, err := s.db.Get(gameKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(bz) == 0 {
		return nil, false, nil
	}
	g := new(Game)
	if err := rlp.DecodeBytes(bz, g); err != nil {
		return nil, false, fmt.Errorf("decoding game %d: %w", id, err)
	}
	return g, true, nil
}

func (s *store) putGame(b dbm.Batch, g *Game) error {
	bz, err := rlp.EncodeToBytes(g)
	if err != nil {
		return err
	}
	return b.Set(gameKey(g.ID), bz)
}

func (s *store) deleteGame(b dbm.Batch, id uint64) error {
	return b.Delete(gameKey(id))
}

// gameIDs lists open games in ascending order.
func (s *store) gameIDs() ([]uint64, error) {
	itr, err := s.db.Iterator(mustKey(prefixGame), mustKey(prefixGame+1))
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	var ids []uint64
	for ; itr.Valid(); itr.Next() {
		var prefix int64
		var id uint64
		if _, err := orderedcode.Parse(string(itr.Key()), &prefix, &id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, itr.Error()
}

func (s *store) schedule(b dbm.Batch, e closeEntry) error {
	bz, err := rlp.EncodeToBytes(&e)
	if err != nil {
		return err
	}
	return b.Set(closeKey(e.Block, e.Seq), bz)
}

func (s *store) unschedule(b dbm.Batch, block, seq uint64) error {
	return b.Delete(closeKey(block, seq))
}

// nextCloses returns the entries of the lowest host block in [from, to]
// holding any, in scheduling order.
func (s *store) nextCloses(from, to uint64) ([]closeEntry, error) {
	itr, err := s.db.Iterator(mustKey(prefixClose, from), mustKey(prefixClose, to+1))
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	var out []closeEntry
	for ; itr.Valid(); itr.Next() {
		var e closeEntry
		if err := rlp.DecodeBytes(itr.Value(), &e); err != nil {
			return nil, err
		}
		if len(out) > 0 && e.Block != out[0].Block {
			break
		}
		out = append(out, e)
	}
	return out, itr.Error()
}

func (s *store) bond(relayer ledger.AccountID) (uint64, error) {
	return s.uint(bondKey(relayer))
}

func (s *store) setBond(b dbm.Batch, relayer ledger.AccountID, v uint64) error {
	if v == 0 {
		return b.Delete(bondKey(relayer))
	}
	return s.setUint(b, bondKey(relayer), v)
}

// bonds returns every relayer with a non-zero bond.
func (s *store) bonds() (map[ledger.AccountID]uint64, error) {
	itr, err := s.db.Iterator(mustKey(prefixBond), mustKey(prefixBond+1))
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	out := make(map[ledger.AccountID]uint64)
	for ; itr.Valid(); itr.Next() {
		var prefix int64
		var relayer string
		if _, err := orderedcode.Parse(string(itr.Key()), &prefix, &relayer); err != nil {
			return nil, err
		}
		var v uint64
		if err := rlp.DecodeBytes(itr.Value(), &v); err != nil {
			return nil, err
		}
		out[ledger.AccountID(relayer)] = v
	}
	return out, itr.Error()
}

func (s *store) finalized() (uint64, error) { return s.uint(metaKey(metaFinalized)) }

func (s *store) setFinalized(b dbm.Batch, h uint64) error {
	return s.setUint(b, metaKey(metaFinalized), h)
}

func (s *store) seq() (uint64, error) { return s.uint(metaKey(metaSeq)) }

func (s *store) setSeq(b dbm.Batch, v uint64) error {
	return s.setUint(b, metaKey(metaSeq), v)
}

func (s *store) uint(key []byte) (uint64, error) {
	bz, err := s.db.Get(key)
	if err != nil || len(bz) == 0 {
		return 0, err
	}
	var v uint64
	if err := rlp.DecodeBytes(bz, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *store) setUint(b dbm.Batch, key []byte, v uint64) error {
	bz, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return b.Set(key, bz)
}

func gameKey(id uint64) []byte { return mustKey(prefixGame, id) }

func closeKey(block, seq uint64) []byte { return mustKey(prefixClose, block, seq) }

func bondKey(relayer ledger.AccountID) []byte { return mustKey(prefixBond, string(relayer)) }

func metaKey(name string) []byte { return mustKey(prefixMeta, name) }

func mustKey(items ...interface{}) []byte {
	key, err := orderedcode.Append(nil, items...)
	if err != nil {
		panic(err)
	}
	return key
}
