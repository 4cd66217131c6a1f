package node

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/creachadair/atomicfile"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darwinia-network/bridge-relay/relay/mmr"
)

// GenesisDoc is the anchor the relay starts from. Header and
// TotalDifficulty anchor the ethereum verifier; Commitment anchors the mmr
// verifier.
type GenesisDoc struct {
	Header          *types.Header `json:"header,omitempty"`
	TotalDifficulty *hexutil.Big  `json:"total_difficulty,omitempty"`
	Commitment      *mmr.Header   `json:"commitment,omitempty"`
}

// ValidateBasic checks the document anchors exactly one verifier.
func (doc *GenesisDoc) ValidateBasic() error {
	switch {
	case doc.Header != nil && doc.Commitment != nil:
		return fmt.Errorf("genesis has both a header and a commitment")
	case doc.Header != nil:
		if doc.TotalDifficulty == nil || doc.TotalDifficulty.ToInt().Sign() < 0 {
			return fmt.Errorf("genesis header needs a non-negative total_difficulty")
		}
		if doc.Header.Difficulty == nil || doc.TotalDifficulty.ToInt().Cmp(doc.Header.Difficulty) < 0 {
			return fmt.Errorf("total_difficulty %v is below the header difficulty", doc.TotalDifficulty)
		}
	case doc.Commitment == nil:
		return fmt.Errorf("genesis has neither a header nor a commitment")
	}
	return nil
}

// TD returns the total difficulty as a big.Int.
func (doc *GenesisDoc) TD() *big.Int {
	if doc.TotalDifficulty == nil {
		return nil
	}
	return new(big.Int).Set(doc.TotalDifficulty.ToInt())
}

// SaveAs writes the document as indented JSON.
func (doc *GenesisDoc) SaveAs(path string) error {
	bz, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = atomicfile.WriteAll(path, bytes.NewReader(bz), 0644)
	return err
}

// GenesisDocFromFile reads and validates the genesis document at path.
func GenesisDocFromFile(path string) (*GenesisDoc, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	doc := new(GenesisDoc)
	if err := json.Unmarshal(bz, doc); err != nil {
		return nil, fmt.Errorf("decoding genesis file %s: %w", path, err)
	}
	if err := doc.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %w", path, err)
	}
	return doc, nil
}

// LoadDagRoots reads one hex-encoded 16-byte dataset root per line, the
// first line being epoch 0. Blank lines and lines starting with # are
// skipped.
func LoadDagRoots(path string) ([][16]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var roots [][16]byte
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !strings.HasPrefix(text, "0x") {
			text = "0x" + text
		}
		bz, err := hexutil.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if len(bz) != 16 {
			return nil, fmt.Errorf("%s:%d: root has %d bytes, want 16", path, line, len(bz))
		}
		var root [16]byte
		copy(root[:], bz)
		roots = append(roots, root)
	}
	return roots, scanner.Err()
}
