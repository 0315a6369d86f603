package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/olowe/batchmint-4337/contracts"
)

const revertPrefix = "execution reverted: "

// RevertReason 从节点错误中提取合约给出的回滚原因
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := decodeRevertData(dataErr.ErrorData()); ok {
			return reason, true
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		reason := strings.TrimSpace(msg[i+len(revertPrefix):])
		if reason != "" {
			return reason, true
		}
	}
	return "", false
}

func decodeRevertData(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, true
	}
	return decodeEntryPointError(raw)
}

// decodeEntryPointError 解码 EntryPoint 的 FailedOp / FailedOpWithRevert，
// 后者内层数据是 Error(string) 时附在原因之后
func decodeEntryPointError(raw []byte) (string, bool) {
	if len(raw) < 4 {
		return "", false
	}
	var id [4]byte
	copy(id[:], raw[:4])
	abiErr, err := contracts.EntryPoint.ErrorByID(id)
	if err != nil || abiErr == nil {
		return "", false
	}
	unpacked, err := abiErr.Unpack(raw)
	if err != nil {
		return "", false
	}
	values, ok := unpacked.([]interface{})
	if !ok || len(values) < 2 {
		return "", false
	}
	reason, ok := values[1].(string)
	if !ok || reason == "" {
		return "", false
	}
	if len(values) > 2 {
		if inner, ok := values[2].([]byte); ok && len(inner) > 0 {
			if innerReason, err := abi.UnpackRevert(inner); err == nil && innerReason != "" {
				return reason + ": " + innerReason, true
			}
		}
	}
	return reason, true
}
