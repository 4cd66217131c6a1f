package ethash_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// loadHeader decodes a header fixture in JSON-RPC format and returns it
// together with the hash the fixture claims for it.
func loadHeader(t *testing.T, name string) (*types.Header, common.Hash) {
	t.Helper()

	bz, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	header := new(types.Header)
	require.NoError(t, json.Unmarshal(bz, header))

	var claimed struct {
		Hash common.Hash `json:"hash"`
	}
	require.NoError(t, json.Unmarshal(bz, &claimed))

	return header, claimed.Hash
}
