package userop

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/olowe/batchmint-4337/contracts"
	"github.com/olowe/batchmint-4337/models"
)

// UserOperation 打包格式的 UserOperation。签名之前 Signature 为空。
type UserOperation struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

// WithSignature 返回附加了签名的副本
func (op UserOperation) WithSignature(sig []byte) UserOperation {
	op.Signature = append([]byte(nil), sig...)
	return op
}

// Signed 是否已签名
func (op UserOperation) Signed() bool {
	return len(op.Signature) > 0
}

// ABI 转成 handleOps / getUserOpHash 的元组结构
func (op UserOperation) ABI() contracts.PackedUserOperation {
	return contracts.PackedUserOperation{
		Sender:             op.Sender,
		Nonce:              orZero(op.Nonce),
		InitCode:           nonNil(op.InitCode),
		CallData:           nonNil(op.CallData),
		AccountGasLimits:   op.AccountGasLimits,
		PreVerificationGas: orZero(op.PreVerificationGas),
		GasFees:            op.GasFees,
		PaymasterAndData:   nonNil(op.PaymasterAndData),
		Signature:          nonNil(op.Signature),
	}
}

// ToModel 转成十六进制的传输格式
func (op UserOperation) ToModel() models.PackedUserOperation {
	return models.PackedUserOperation{
		Sender:             op.Sender.Hex(),
		Nonce:              hexutil.EncodeBig(orZero(op.Nonce)),
		InitCode:           hexutil.Encode(nonNil(op.InitCode)),
		CallData:           hexutil.Encode(nonNil(op.CallData)),
		AccountGasLimits:   hexutil.Encode(op.AccountGasLimits[:]),
		PreVerificationGas: hexutil.EncodeBig(orZero(op.PreVerificationGas)),
		GasFees:            hexutil.Encode(op.GasFees[:]),
		PaymasterAndData:   hexutil.Encode(nonNil(op.PaymasterAndData)),
		Signature:          hexutil.Encode(nonNil(op.Signature)),
	}
}

// FromModel 校验并解码传输格式的 UserOperation
func FromModel(m models.PackedUserOperation) (UserOperation, error) {
	var op UserOperation
	if !common.IsHexAddress(m.Sender) {
		return op, fmt.Errorf("invalid sender: %q", m.Sender)
	}
	op.Sender = common.HexToAddress(m.Sender)

	var err error
	if op.Nonce, err = decodeQuantity(m.Nonce); err != nil {
		return op, fmt.Errorf("invalid nonce: %w", err)
	}
	if op.InitCode, err = decodeHexBytes(m.InitCode); err != nil {
		return op, fmt.Errorf("invalid initCode: %w", err)
	}
	if len(op.InitCode) > 0 && len(op.InitCode) < common.AddressLength {
		return op, fmt.Errorf("invalid initCode: shorter than a factory address")
	}
	if op.CallData, err = decodeHexBytes(m.CallData); err != nil {
		return op, fmt.Errorf("invalid callData: %w", err)
	}
	if op.AccountGasLimits, err = decodeFixed32(m.AccountGasLimits); err != nil {
		return op, fmt.Errorf("invalid accountGasLimits: %w", err)
	}
	if op.PreVerificationGas, err = decodeQuantity(m.PreVerificationGas); err != nil {
		return op, fmt.Errorf("invalid preVerificationGas: %w", err)
	}
	if op.GasFees, err = decodeFixed32(m.GasFees); err != nil {
		return op, fmt.Errorf("invalid gasFees: %w", err)
	}
	if op.PaymasterAndData, err = decodeHexBytes(m.PaymasterAndData); err != nil {
		return op, fmt.Errorf("invalid paymasterAndData: %w", err)
	}
	if op.Signature, err = decodeHexBytes(m.Signature); err != nil {
		return op, fmt.Errorf("invalid signature: %w", err)
	}
	return op, nil
}

// decodeHexBytes 解码 0x 前缀的十六进制字符串，空串视为 0x
func decodeHexBytes(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("invalid hex string")
	}
	return hexutil.Decode(s)
}

// decodeFixed32 解码恰好 32 字节的十六进制字符串
func decodeFixed32(s string) ([32]byte, error) {
	var fixed [32]byte
	decoded, err := decodeHexBytes(s)
	if err != nil {
		return fixed, err
	}
	if len(decoded) != 32 {
		return fixed, fmt.Errorf("invalid hex string size: got %d, expected 32", len(decoded))
	}
	copy(fixed[:], decoded)
	return fixed, nil
}

// decodeQuantity 十六进制(0x)或十进制数值，两种写法都限制在 256 位以内
func decodeQuantity(s string) (*big.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if errors.Is(err, hexutil.ErrBig256Range) {
			return nil, fmt.Errorf("%w: %s exceeds uint256", ErrValueOutOfRange, s)
		}
		return v, err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	if _, err := toUint256(v); err != nil {
		return nil, err
	}
	return v, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
