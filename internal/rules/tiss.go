package rules

// TISS/TUSS reference data for the billing catalog. Sample of the national
// table, enough to exercise every validation path.

// Denial codes (glosa catalog).
const (
	DenialMissingAuth     = "G001" // no prior authorization
	DenialAuthExpired     = "G002" // authorization expired
	DenialIncompleteDocs  = "G003" // incomplete documentation
	DenialAmountMismatch  = "G004" // billed amount divergence
	DenialCIDIncompatible = "G005" // diagnosis x procedure incompatibility
	DenialUnknownCode     = "G006" // procedure code not recognized
	DenialOPMEUnauthorized = "G007" // OPME without item authorization
)

// DenialDescriptions maps denial codes to their catalog descriptions.
var DenialDescriptions = map[string]string{
	DenialMissingAuth:      "Ausência de autorização prévia",
	DenialAuthExpired:      "Autorização prévia expirada",
	DenialIncompleteDocs:   "Documentação incompleta",
	DenialAmountMismatch:   "Divergência de valores cobrados",
	DenialCIDIncompatible:  "Incompatibilidade entre CID e procedimento",
	DenialUnknownCode:      "Procedimento não reconhecido na tabela TUSS",
	DenialOPMEUnauthorized: "OPME sem autorização específica do item",
}

// TISSProcedure is one row of the procedure table.
type TISSProcedure struct {
	Code         string
	Name         string
	Category     string
	RequiresAuth bool
	OPME         bool

	// BaseGlosaRate is the historical denial rate in percent.
	BaseGlosaRate int

	// AvgAmount is the historical average billed amount.
	AvgAmount float64

	// CIDPrefixes are acceptable diagnosis-code prefixes; empty means any
	// diagnosis is acceptable.
	CIDPrefixes []string
}

// TISSProcedures is the sample procedure table, keyed by code.
var TISSProcedures = map[string]TISSProcedure{
	"10101012": {
		Code: "10101012", Name: "Consulta em consultório",
		Category: "CONSULTATION", BaseGlosaRate: 3, AvgAmount: 150,
	},
	"40304361": {
		Code: "40304361", Name: "Hemograma completo",
		Category: "LABORATORY", BaseGlosaRate: 5, AvgAmount: 25,
	},
	"41101014": {
		Code: "41101014", Name: "Radiografia de tórax",
		Category: "IMAGING", BaseGlosaRate: 8, AvgAmount: 90,
	},
	"40901220": {
		Code: "40901220", Name: "Ressonância magnética de coluna lombar",
		Category: "IMAGING", RequiresAuth: true, BaseGlosaRate: 12, AvgAmount: 1100,
		CIDPrefixes: []string{"M4", "M5"},
	},
	"30602122": {
		Code: "30602122", Name: "Colecistectomia videolaparoscópica",
		Category: "SURGERY", RequiresAuth: true, BaseGlosaRate: 18, AvgAmount: 28000,
		CIDPrefixes: []string{"K8"},
	},
	"30715016": {
		Code: "30715016", Name: "Artroplastia total de quadril",
		Category: "SURGERY_OPME", RequiresAuth: true, OPME: true,
		BaseGlosaRate: 22, AvgAmount: 45000,
		CIDPrefixes: []string{"M16"},
	},
	"60023155": {
		Code: "60023155", Name: "Quimioterapia antineoplásica",
		Category: "ONCOLOGY", RequiresAuth: true, BaseGlosaRate: 15, AvgAmount: 8500,
		CIDPrefixes: []string{"C", "D0"},
	},
	"30912083": {
		Code: "30912083", Name: "Cateterismo cardíaco",
		Category: "CARDIOLOGY", RequiresAuth: true, BaseGlosaRate: 20, AvgAmount: 12000,
		CIDPrefixes: []string{"I2", "I5"},
	},
}

// LookupTISS returns the procedure row for a code.
func LookupTISS(code string) (TISSProcedure, bool) {
	p, ok := TISSProcedures[code]
	return p, ok
}

// High-value procedures add extra authorization risk.
const highValueThreshold = 5000.0

// authRiskProbability applies the missing-authorization formula shared by
// the auth and CID-compatibility checks: base rate + 45, plus 10 for
// high-value procedures, capped at 98.
func authRiskProbability(p TISSProcedure) int {
	probability := p.BaseGlosaRate + 45
	if p.AvgAmount > highValueThreshold {
		probability += 10
	}
	if probability > 98 {
		probability = 98
	}
	return probability
}

// authRiskThreshold decides RED versus YELLOW for computed auth risk.
const authRiskThreshold = 70
