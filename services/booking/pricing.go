package booking

import (
	"math"

	"cabbooking/models"
)

// base fares in USD per tier.
var baseFares = map[models.CabType]float64{
	models.CabStandard: 50,
	models.CabPremium:  75,
	models.CabLuxury:   120,
}

// partySurcharge applies per passenger beyond the first two.
const partySurcharge = 0.1

// EstimateFare returns the quoted fare for a tier and party size. An empty
// tier is quoted as Standard.
func EstimateFare(t models.CabType, partySize int) float64 {
	base, ok := baseFares[t]
	if !ok {
		base = baseFares[models.CabStandard]
	}
	extra := partySize - 2
	if extra < 0 {
		extra = 0
	}
	fare := base * (1 + partySurcharge*float64(extra))
	return math.Round(fare*100) / 100
}
