// Package feature derives the numeric feature vector consumed by the trained
// models from a raw claim.
package feature

// Midpoint tables turning the dataset's categorical buckets into
// representative numeric values. The buckets and midpoints are fixed at
// training time; an unmapped or missing value falls back to the table's
// default and never fails.

var ageMidpoints = map[string]float64{
	"below 18": 17, "16 to 17": 17, "18 to 20": 19, "21 to 25": 23,
	"26 to 30": 28, "31 to 35": 33, "36 to 40": 38, "41 to 50": 45,
	"51 to 65": 58, "over 65": 70,
}

var priceMidpoints = map[string]float64{
	"less than 20000": 15000, "20000 to 29000": 24500,
	"30000 to 39000": 34500, "40000 to 59000": 49500,
	"60000 to 69000": 64500, "more than 69000": 80000,
}

var vehicleAgeValues = map[string]float64{
	"new": 0, "2 years": 2, "3 years": 3, "4 years": 4,
	"5 years": 5, "6 years": 6, "7 years": 7, "more than 7": 10,
}

var daysToClaimValues = map[string]float64{
	"none": 0, "1 to 7": 4, "8 to 15": 11,
	"15 to 30": 22, "more than 30": 45,
}

// Table defaults used when the input is missing or out of enumeration.
const (
	defaultAge        = 35
	defaultPrice      = 35000
	defaultVehicleAge = 5
	defaultDays       = 30
)

func lookup(table map[string]float64, value string, fallback float64) float64 {
	if v, ok := table[value]; ok {
		return v
	}
	return fallback
}

// AgeMidpoint maps a policy-holder age bucket to its numeric midpoint.
func AgeMidpoint(bucket string) float64 {
	return lookup(ageMidpoints, bucket, defaultAge)
}

// PriceMidpoint maps a vehicle price bucket to its numeric midpoint.
func PriceMidpoint(bucket string) float64 {
	return lookup(priceMidpoints, bucket, defaultPrice)
}

// VehicleAge maps a vehicle age bucket to years.
func VehicleAge(bucket string) float64 {
	return lookup(vehicleAgeValues, bucket, defaultVehicleAge)
}

// DaysToClaim maps a days-to-claim bucket to a representative day count.
func DaysToClaim(bucket string) float64 {
	return lookup(daysToClaimValues, bucket, defaultDays)
}
