package models

// PackedUserOperation 以十六进制字符串表示的 UserOperation，用于 HTTP 收发
type PackedUserOperation struct {
	Sender             string `json:"sender" binding:"required"`
	Nonce              string `json:"nonce" binding:"required"`
	InitCode           string `json:"initCode"`
	CallData           string `json:"callData" binding:"required"`
	AccountGasLimits   string `json:"accountGasLimits" binding:"required"`
	PreVerificationGas string `json:"preVerificationGas" binding:"required"`
	GasFees            string `json:"gasFees" binding:"required"`
	PaymasterAndData   string `json:"paymasterAndData"`
	Signature          string `json:"signature" binding:"required"`
}
