package relay

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/security"
	"github.com/btc-parachain/core/internal/types"
)

const testBits = 0x217fffff // expands to a target above every 256-bit hash, so fixture headers meet it without mining.

func buildHeader(t *testing.T, prevHash Hash, timestamp uint32, nonce uint32) []byte {
	t.Helper()
	raw := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(raw[0:4], 1)
	copy(raw[4:36], reverse(prevHash[:]))
	var merkle Hash
	merkle[0] = byte(nonce)
	copy(raw[36:68], reverse(merkle[:]))
	binary.LittleEndian.PutUint32(raw[68:72], timestamp)
	binary.LittleEndian.PutUint32(raw[72:76], testBits)
	binary.LittleEndian.PutUint32(raw[76:80], nonce)
	return raw
}

func testAddr(t *testing.T, b byte) types.Address {
	t.Helper()
	buf := make([]byte, 20)
	buf[0] = b
	addr, err := types.NewAddress(types.AccountPrefix, buf)
	require.NoError(t, err)
	return addr
}

func TestInitializeAndExtend(t *testing.T) {
	store := NewStore(Config{StableBitcoinConfirmations: 1, StableParachainConfirmations: 0}, security.NewStatus())
	submitter := testAddr(t, 0x01)

	genesisRaw := buildHeader(t, Hash{}, 1_600_000_000, 0)
	require.NoError(t, store.Initialize(submitter, genesisRaw, 100, 1))
	genesis, err := ParseHeader(genesisRaw)
	require.NoError(t, err)

	prevHash := genesis.Hash
	for i, height := range []uint32{101, 102, 103} {
		raw := buildHeader(t, prevHash, 1_600_000_100+uint32(i)*600, uint32(i+1))
		rich, dup, err := store.StoreHeader(submitter, raw, uint32(height))
		require.NoError(t, err)
		require.False(t, dup)
		require.Equal(t, height, rich.Height)
		require.Equal(t, uint32(0), rich.ChainID)
		header, _ := ParseHeader(raw)
		prevHash = header.Hash
	}

	require.Equal(t, uint32(103), store.BestHeight())
	require.Len(t, store.chains, 1)
	require.Equal(t, uint32(0), store.chains[0])
}

func TestForkAndReorg(t *testing.T) {
	store := NewStore(Config{StableBitcoinConfirmations: 1, StableParachainConfirmations: 0}, security.NewStatus())
	submitter := testAddr(t, 0x01)

	genesisRaw := buildHeader(t, Hash{}, 1_600_000_000, 0)
	require.NoError(t, store.Initialize(submitter, genesisRaw, 100, 1))
	genesis, _ := ParseHeader(genesisRaw)

	h101Raw := buildHeader(t, genesis.Hash, 1_600_000_600, 1)
	_, _, err := store.StoreHeader(submitter, h101Raw, 2)
	require.NoError(t, err)
	h101, _ := ParseHeader(h101Raw)

	h102MainRaw := buildHeader(t, h101.Hash, 1_600_001_200, 2)
	_, _, err = store.StoreHeader(submitter, h102MainRaw, 3)
	require.NoError(t, err)

	// Competing fork block at height 102 (same parent, different nonce).
	h102ForkRaw := buildHeader(t, h101.Hash, 1_600_001_200, 99)
	_, dup, err := store.StoreHeader(submitter, h102ForkRaw, 3)
	require.NoError(t, err)
	require.False(t, dup)
	h102Fork, _ := ParseHeader(h102ForkRaw)

	require.Len(t, store.chains, 2)
	require.Equal(t, uint32(0), store.chains[0], "main stays ahead while tied")
	forkChain, ok := store.Chain(1)
	require.True(t, ok)
	require.Equal(t, uint32(102), forkChain.StartHeight)
	require.Equal(t, uint32(102), forkChain.MaxHeight)

	h103ForkRaw := buildHeader(t, h102Fork.Hash, 1_600_001_800, 100)
	_, _, err = store.StoreHeader(submitter, h103ForkRaw, 4)
	require.NoError(t, err)
	h103Fork, _ := ParseHeader(h103ForkRaw)

	h104ForkRaw := buildHeader(t, h103Fork.Hash, 1_600_002_400, 101)
	rich, _, err := store.StoreHeader(submitter, h104ForkRaw, 5)
	require.NoError(t, err)

	// With stable_bitcoin_confirmations=1, the fork reaching 103 leads
	// main's 102 by 1 and triggers the main-chain swap; 104 then extends
	// the promoted chain.
	require.Equal(t, uint32(0), rich.ChainID, "fork was promoted to main")
	require.Equal(t, uint32(104), store.BestHeight())
}
