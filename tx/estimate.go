package tx

const (
	// DustLimit is the minimum value of a spendable output in satoshis.
	DustLimit = uint64(546)

	// DefaultFeeRate is the miner fee rate in sat/byte used when none is given.
	DefaultFeeRate = uint64(5)

	// MinFeeRate and MaxFeeRate bound caller supplied fee rates in sat/byte.
	MinFeeRate = uint64(1)
	MaxFeeRate = uint64(500)

	// InputSize is the estimated size of a signed P2PKH input.
	InputSize = 68

	// OutputSize is the estimated size of a plain value output.
	OutputSize = 31

	// DataOutputOverhead is the estimated size of a data output excluding
	// its payload bytes.
	DataOutputOverhead = 43

	// TxOverhead covers version, locktime and the input/output counts.
	TxOverhead = 10
)

// EstimateSize estimates the transaction size in bytes.
//
//	inputs*68 + plainOutputs*31 + sum(43 + payload) + 10
func EstimateSize(inputs, plainOutputs int, dataPayloads ...int) int {
	size := TxOverhead + inputs*InputSize + plainOutputs*OutputSize
	for _, n := range dataPayloads {
		size += DataOutputOverhead + n
	}
	return size
}

// EstimateOutputsSize estimates the size of a transaction spending inputs
// and creating outputs.
func EstimateOutputsSize(inputs int, outputs []Output) int {
	plain := 0
	var payloads []int
	for _, o := range outputs {
		if d, ok := o.(DataOutput); ok {
			payloads = append(payloads, d.PayloadSize)
			continue
		}
		plain++
	}
	return EstimateSize(inputs, plain, payloads...)
}

// EstimateFee returns size * feeRate. Rates are whole sat/byte so the
// product is already the ceiling.
func EstimateFee(size int, feeRate uint64) uint64 {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	if size <= 0 {
		return 0
	}
	return uint64(size) * feeRate
}

// ValidFeeRate reports whether rate is within [MinFeeRate, MaxFeeRate].
func ValidFeeRate(rate uint64) bool {
	return rate >= MinFeeRate && rate <= MaxFeeRate
}
