// Package acs fetches American Community Survey 5-year estimates from the
// Census Data API and assembles per-tract raw counts.
package acs

import "github.com/urbanhealthlab/icemapper/internal/ice"

// Variable is an ACS detailed-table estimate code.
type Variable string

// The closed set of estimates the calculator consumes. The mapping from
// variable code to field is fixed at design time; there is no runtime
// rename table.
const (
	VarTotalPopulation      Variable = "B01003_001E" // total population
	VarTotalWhiteNH         Variable = "B03002_003E" // white alone, not Hispanic
	VarTotalBlack           Variable = "B03002_004E" // Black or African American alone
	VarTotalHispanic        Variable = "B03002_012E" // Hispanic or Latino
	VarHouseholdIncomeTotal Variable = "B19001_001E" // households, income universe
	VarPovertyUniverse      Variable = "B17001_001E" // population for whom poverty is determined
	VarInPoverty            Variable = "B17001_002E" // income below poverty level
)

// bracketVarsAll holds the eight extreme income brackets for all households:
// the four bands below $25k and the four bands from $100k up, low to high.
var bracketVarsAll = [ice.NumBrackets]Variable{
	"B19001_002E", // under $10k
	"B19001_003E", // $10k-$15k
	"B19001_004E", // $15k-$20k
	"B19001_005E", // $20k-$25k
	"B19001_014E", // $100k-$125k
	"B19001_015E", // $125k-$150k
	"B19001_016E", // $150k-$200k
	"B19001_017E", // $200k+
}

// bracketVarsWhiteNH holds the same brackets restricted to households with a
// white non-Hispanic householder (table B19001H), indexed identically.
var bracketVarsWhiteNH = [ice.NumBrackets]Variable{
	"B19001H_002E",
	"B19001H_003E",
	"B19001H_004E",
	"B19001H_005E",
	"B19001H_014E",
	"B19001H_015E",
	"B19001H_016E",
	"B19001H_017E",
}

// Variables returns every estimate code the client requests, in request order.
func Variables() []Variable {
	vars := []Variable{
		VarTotalPopulation,
		VarTotalWhiteNH,
		VarTotalBlack,
		VarTotalHispanic,
		VarHouseholdIncomeTotal,
		VarPovertyUniverse,
		VarInPoverty,
	}
	vars = append(vars, bracketVarsAll[:]...)
	vars = append(vars, bracketVarsWhiteNH[:]...)
	return vars
}
