package receipt

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func deployedLog(t *testing.T, token common.Address, name, symbol string) *types.Log {
	t.Helper()
	data, err := tokenDeployed.Inputs.NonIndexed().Pack(name, symbol)
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{tokenDeployed.ID, common.BytesToHash(creator.Bytes()), common.BytesToHash(token.Bytes())},
		Data:   data,
	}
}

func skippedLog(t *testing.T, name, symbol, reason string) *types.Log {
	t.Helper()
	data, err := tokenSkipped.Inputs.NonIndexed().Pack(name, symbol, reason)
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{tokenSkipped.ID, common.BytesToHash(creator.Bytes())},
		Data:   data,
	}
}

func TestParse_AllDeployed(t *testing.T) {
	res := Parse([]*types.Log{
		deployedLog(t, tokenA, "A", "AAA"),
		deployedLog(t, tokenB, "B", "BBB"),
	})

	require.Len(t, res.Deployed, 2)
	assert.Empty(t, res.Skipped)
	assert.NotNil(t, res.Skipped)

	assert.Equal(t, "Deployed0", res.Deployed[0].ID)
	assert.Equal(t, "A", res.Deployed[0].Name)
	assert.Equal(t, "AAA", res.Deployed[0].Symbol)
	assert.Equal(t, tokenA.Hex(), res.Deployed[0].TokenAddress)
	assert.Equal(t, "Deployed1", res.Deployed[1].ID)
	assert.Equal(t, tokenB.Hex(), res.Deployed[1].TokenAddress)
}

func TestParse_DeployedAndSkipped(t *testing.T) {
	res := Parse([]*types.Log{
		deployedLog(t, tokenA, "A", "AAA"),
		skippedLog(t, "B", "BBB", "already deployed"),
	})

	require.Len(t, res.Deployed, 1)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Deployed0", res.Deployed[0].ID)
	assert.Equal(t, "Skipped0", res.Skipped[0].ID)
	assert.Equal(t, "B", res.Skipped[0].Name)
	assert.Equal(t, "BBB", res.Skipped[0].Symbol)
	assert.Equal(t, "already deployed", res.Skipped[0].Reason)
}

func TestParse_IgnoresUnknownAndMalformedLogs(t *testing.T) {
	malformed := deployedLog(t, tokenA, "A", "AAA")
	malformed.Data = []byte{0x01}

	res := Parse([]*types.Log{
		nil,
		{Topics: nil},
		{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}, Data: []byte{0x01}},
		malformed,
		skippedLog(t, "C", "CCC", "invalid"),
		deployedLog(t, tokenB, "B", "BBB"),
	})

	require.Len(t, res.Deployed, 1)
	assert.Equal(t, "Deployed0", res.Deployed[0].ID)
	assert.Equal(t, "B", res.Deployed[0].Name)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Skipped0", res.Skipped[0].ID)
}

func TestResult_Outcome(t *testing.T) {
	hash := common.HexToHash("0x01")
	out := Parse(nil).Outcome(hash)
	assert.Equal(t, "ok", out.Status)
	assert.NotNil(t, out.DeployedTokens)
	assert.NotNil(t, out.SkippedTokens)
	assert.Equal(t, hash.Hex(), out.TransactionHash)
}

func TestCreatorQuery(t *testing.T) {
	factory := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	q := CreatorQuery(factory, creator, 6400000)

	assert.Equal(t, []common.Address{factory}, q.Addresses)
	assert.Equal(t, uint64(6400000), q.FromBlock.Uint64())
	assert.Nil(t, q.ToBlock)
	require.Len(t, q.Topics, 2)
	assert.Equal(t, []common.Hash{tokenDeployed.ID}, q.Topics[0])
	assert.Equal(t, []common.Hash{common.BytesToHash(creator.Bytes())}, q.Topics[1])

	// 查询结果与回执走同一个解码
	res := Parse([]*types.Log{deployedLog(t, tokenA, "Alpha", "ALP")})
	require.Len(t, res.Deployed, 1)
	assert.Equal(t, tokenA.Hex(), res.Deployed[0].TokenAddress)
}
