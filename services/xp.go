package services

// XPPotential is the reward for finishing a selection: twice the distance of
// each animal's probability from 100, summed over distinct animals.
func XPPotential(animals []Selection) int64 {
	var total int64
	for _, a := range animals {
		d := a.Probability - 100
		if d < 0 {
			d = -d
		}
		total += int64(d) * 2
	}
	return total
}
