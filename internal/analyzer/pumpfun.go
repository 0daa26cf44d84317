package analyzer

import (
	"github.com/mr-tron/base58"

	"solana-holder-scan/internal/solana"
)

// PumpFunProgramID is the pump.fun bonding-curve program.
const PumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// Anchor instruction discriminators of the accepted pump.fun operations.
var pumpFunOperations = map[[8]byte]string{
	{102, 6, 61, 18, 1, 218, 235, 234}:    "buy",
	{51, 230, 133, 164, 1, 127, 131, 173}: "sell",
	{24, 30, 200, 40, 5, 28, 7, 119}:      "create",
}

// PumpFunOperation returns the operation name when ix is an accepted pump.fun
// instruction.
func PumpFunOperation(ix solana.Instruction) (string, bool) {
	if ix.ProgramID != PumpFunProgramID || ix.Data == "" {
		return "", false
	}
	data, err := base58.Decode(ix.Data)
	if err != nil || len(data) < 8 {
		return "", false
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	op, ok := pumpFunOperations[disc]
	return op, ok
}

// HasPumpFunOperation reports whether any outer or inner instruction of tx
// is an accepted pump.fun operation.
func HasPumpFunOperation(tx *solana.Transaction) bool {
	if tx == nil || tx.Failed {
		return false
	}
	for _, ix := range tx.AllInstructions() {
		if _, ok := PumpFunOperation(ix); ok {
			return true
		}
	}
	return false
}
