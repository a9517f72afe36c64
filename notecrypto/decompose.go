package notecrypto

// DecomposeAmount splits amount into the standard decimal denominations used
// by transaction outputs.  Digits at or below dustThreshold are merged into a
// single leading dust chunk; the remaining chunks follow in ascending order.
func DecomposeAmount(amount, dustThreshold uint64) []uint64 {
	var chunks []uint64
	var dust uint64

	for order := uint64(1); amount != 0; order *= 10 {
		digit := amount % 10
		amount /= 10
		if digit == 0 {
			continue
		}

		chunk := digit * order
		if chunk <= dustThreshold {
			dust += chunk
		} else {
			chunks = append(chunks, chunk)
		}
	}

	if dust != 0 {
		chunks = append([]uint64{dust}, chunks...)
	}
	return chunks
}
