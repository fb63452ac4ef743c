package pucch

// Formats 0 and 1 carry at most two HARQ-ACK bits (plus SR, signalled by the
// sequence choice rather than payload).
const maxPayloadFormat0And1 = 2

// MaxPayloadBits returns the maximum UCI payload, in bits, a resource with the
// given format parameters can carry at the configured max code rate.
func MaxPayloadBits(p FormatParams) int {
	switch v := p.(type) {
	case Format0Params, Format1Params:
		return maxPayloadFormat0And1
	case Format2Params:
		// 8 data REs per PRB per symbol, QPSK.
		return payloadFromCapacity(16*v.NofSymbols*v.MaxNofPRBs, v.MaxCodeRate)
	case Format3Params:
		dataSymbols := v.NofSymbols - nofDMRSSymbols(v.NofSymbols, v.IntraslotFreqHopping, v.AdditionalDMRS)
		return payloadFromCapacity(12*v.MaxNofPRBs*dataSymbols*modulationOrder(v.Pi2BPSK), v.MaxCodeRate)
	case Format4Params:
		dataSymbols := v.NofSymbols - nofDMRSSymbols(v.NofSymbols, v.IntraslotFreqHopping, v.AdditionalDMRS)
		return payloadFromCapacity(12*dataSymbols*modulationOrder(v.Pi2BPSK)/v.OCCLength, v.MaxCodeRate)
	}
	return 0
}

func modulationOrder(pi2BPSK bool) int {
	if pi2BPSK {
		return 1
	}
	return 2
}

// nofDMRSSymbols follows TS 38.211 Table 6.4.1.3.3.2-1 for formats 3 and 4.
func nofDMRSSymbols(nofSymbols int, hopping, additionalDMRS bool) int {
	switch {
	case nofSymbols == 4:
		if hopping {
			return 2
		}
		return 1
	case nofSymbols < 10:
		return 2
	case additionalDMRS:
		return 4
	default:
		return 2
	}
}

func payloadFromCapacity(rateMatchedBits int, rate MaxCodeRate) int {
	return maxPayloadWithCRC(rateMatchedBits * int(rate) / 100)
}

// UCICRCBits returns the CRC length attached to an UCI payload of a bits
// (TS 38.212 Section 6.3.1.2.1).
func UCICRCBits(a int) int {
	switch {
	case a <= 11:
		return 0
	case a <= 19:
		return 6
	default:
		return 11
	}
}

// maxPayloadWithCRC returns the largest payload a such that a plus its CRC
// fits into k coded bits.
func maxPayloadWithCRC(k int) int {
	if k <= 11 {
		return max(k, 0)
	}
	if k-11 >= 20 {
		return k - 11
	}
	if k-6 >= 12 {
		return min(k-6, 19)
	}
	return 11
}
