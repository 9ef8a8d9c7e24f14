package rules

// Static clinical reference data consulted by the clinical catalog. Names
// are stored pre-normalized (see NormalizeDrugName).

// CrossReactivityGroup relates structurally similar drugs. A candidate drug
// and a documented allergen matching the same group carry the group's
// cross-reactivity percentage; 100 is treated as a direct-equivalent match.
type CrossReactivityGroup struct {
	Name    string
	Percent int
	Members []string
}

// CrossReactivityGroups is the allergy cross-reactivity table.
var CrossReactivityGroups = []CrossReactivityGroup{
	{
		Name:    "Penicillins",
		Percent: 100,
		Members: []string{
			"penicilina", "penicillin", "amoxicilina", "amoxicillin",
			"ampicilina", "ampicillin", "piperacilina", "piperacillin",
			"oxacilina", "oxacillin", "amoxicilinaclavulanato",
		},
	},
	{
		// Penicillin-class allergens appear here as well: a penicillin
		// allergy predicts roughly 10% reactivity to cephalosporins.
		Name:    "Cephalosporins",
		Percent: 10,
		Members: []string{
			"cefalexina", "cephalexin", "cefazolina", "cefazolin",
			"ceftriaxona", "ceftriaxone", "cefuroxima", "cefuroxime",
			"cefepima", "cefepime",
			"penicilina", "penicillin", "amoxicilina", "amoxicillin",
			"ampicilina", "ampicillin",
		},
	},
	{
		Name:    "Sulfonamides",
		Percent: 100,
		Members: []string{
			"sulfametoxazol", "sulfamethoxazole", "sulfadiazina",
			"sulfadiazine", "sulfassalazina", "sulfasalazine",
			"sulfametoxazoltrimetoprima", "trimethoprimsulfamethoxazole",
		},
	},
	{
		Name:    "NSAIDs",
		Percent: 30,
		Members: []string{
			"ibuprofeno", "ibuprofen", "naproxeno", "naproxen",
			"diclofenaco", "diclofenac", "cetoprofeno", "ketoprofen",
			"cetorolaco", "ketorolac", "aspirina", "aspirin",
			"acidoacetilsalicilico",
		},
	},
	{
		Name:    "Opioids",
		Percent: 20,
		Members: []string{
			"morfina", "morphine", "codeina", "codeine", "tramadol",
			"oxicodona", "oxycodone", "fentanil", "fentanyl",
		},
	},
}

// InteractionSeverity ranks drug-drug interaction pairs.
type InteractionSeverity string

const (
	InteractionLethal   InteractionSeverity = "LETHAL"
	InteractionSevere   InteractionSeverity = "SEVERE"
	InteractionModerate InteractionSeverity = "MODERATE"
	InteractionMild     InteractionSeverity = "MILD"
)

// DrugInteraction pairs two drug sets. A new prescription in one set
// interacts with any active medication in the other.
type DrugInteraction struct {
	Drugs1    []string
	Drugs2    []string
	Severity  InteractionSeverity
	EffectPT  string
	EffectEN  string
	Reference string
}

// DrugInteractions is the drug-drug interaction table.
var DrugInteractions = []DrugInteraction{
	{
		Drugs1:   []string{"fenelzina", "phenelzine", "tranilcipromina", "tranylcypromine", "isocarboxazida", "selegilina", "selegiline"},
		Drugs2:   []string{"fluoxetina", "fluoxetine", "sertralina", "sertraline", "paroxetina", "paroxetine", "citalopram", "escitalopram"},
		Severity: InteractionLethal,
		EffectPT: "Risco de síndrome serotoninérgica potencialmente fatal (IMAO + ISRS)",
		EffectEN: "Risk of potentially fatal serotonin syndrome (MAOI + SSRI)",
	},
	{
		Drugs1:   []string{"sildenafila", "sildenafil", "tadalafila", "tadalafil", "vardenafila", "vardenafil"},
		Drugs2:   []string{"nitroglicerina", "nitroglycerin", "isossorbida", "isosorbide"},
		Severity: InteractionLethal,
		EffectPT: "Hipotensão grave e potencialmente fatal (inibidor de PDE5 + nitrato)",
		EffectEN: "Severe, potentially fatal hypotension (PDE5 inhibitor + nitrate)",
	},
	{
		Drugs1:   []string{"varfarina", "warfarin"},
		Drugs2:   []string{"ibuprofeno", "ibuprofen", "naproxeno", "naproxen", "diclofenaco", "diclofenac", "aspirina", "aspirin", "cetorolaco", "ketorolac"},
		Severity: InteractionSevere,
		EffectPT: "Risco elevado de sangramento (anticoagulante + AINE)",
		EffectEN: "Elevated bleeding risk (anticoagulant + NSAID)",
	},
	{
		Drugs1:   []string{"metotrexato", "methotrexate"},
		Drugs2:   []string{"trimetoprima", "trimethoprim", "sulfametoxazoltrimetoprima", "trimethoprimsulfamethoxazole"},
		Severity: InteractionSevere,
		EffectPT: "Mielossupressão grave por antagonismo de folato",
		EffectEN: "Severe myelosuppression via folate antagonism",
	},
	{
		Drugs1:   []string{"sinvastatina", "simvastatin", "atorvastatina", "atorvastatin"},
		Drugs2:   []string{"claritromicina", "clarithromycin", "eritromicina", "erythromycin"},
		Severity: InteractionModerate,
		EffectPT: "Risco aumentado de miopatia e rabdomiólise",
		EffectEN: "Increased risk of myopathy and rhabdomyolysis",
	},
	{
		Drugs1:   []string{"digoxina", "digoxin"},
		Drugs2:   []string{"amiodarona", "amiodarone"},
		Severity: InteractionModerate,
		EffectPT: "Elevação dos níveis séricos de digoxina",
		EffectEN: "Elevated digoxin serum levels",
	},
	{
		Drugs1:   []string{"lisinopril", "enalapril", "captopril"},
		Drugs2:   []string{"espironolactona", "spironolactone"},
		Severity: InteractionModerate,
		EffectPT: "Risco de hipercalemia (IECA + poupador de potássio)",
		EffectEN: "Hyperkalemia risk (ACE inhibitor + potassium-sparing diuretic)",
	},
	{
		Drugs1:   []string{"tramadol"},
		Drugs2:   []string{"sertralina", "sertraline", "fluoxetina", "fluoxetine"},
		Severity: InteractionModerate,
		EffectPT: "Risco de síndrome serotoninérgica e redução do limiar convulsivo",
		EffectEN: "Serotonin syndrome risk and lowered seizure threshold",
	},
	{
		Drugs1:   []string{"ciprofloxacino", "ciprofloxacin"},
		Drugs2:   []string{"cafeina", "caffeine"},
		Severity: InteractionMild,
		EffectPT: "Redução do metabolismo da cafeína",
		EffectEN: "Reduced caffeine metabolism",
	},
}

// RenallyClearedDrugs require dose adjustment or avoidance under reduced
// renal function.
var RenallyClearedDrugs = []string{
	"metformina", "metformin",
	"gabapentina", "gabapentin",
	"enoxaparina", "enoxaparin",
	"vancomicina", "vancomycin",
	"lisinopril",
	"atenolol",
	"digoxina", "digoxin",
	"alopurinol", "allopurinol",
}

// eGFR severity thresholds (mL/min/1.73m²).
const (
	EGFRYellowThreshold = 60.0
	EGFRRedThreshold    = 30.0
)

// AgeRestriction flags a drug below a minimum age.
type AgeRestriction struct {
	Drugs    []string
	MinAge   int
	ReasonPT string
	ReasonEN string
}

// AgeRestrictions is the pediatric restriction table.
var AgeRestrictions = []AgeRestriction{
	{
		Drugs:    []string{"aspirina", "aspirin", "acidoacetilsalicilico"},
		MinAge:   16,
		ReasonPT: "Risco de síndrome de Reye em menores de 16 anos",
		ReasonEN: "Reye's syndrome risk under 16 years",
	},
	{
		Drugs:    []string{"ciprofloxacino", "ciprofloxacin", "levofloxacino", "levofloxacin", "moxifloxacino", "moxifloxacin", "norfloxacino", "norfloxacin"},
		MinAge:   18,
		ReasonPT: "Fluoroquinolonas contraindicadas em menores de 18 anos (artropatia)",
		ReasonEN: "Fluoroquinolones contraindicated under 18 years (arthropathy)",
	},
}

// PregnancyCategoryXDrugs are absolutely contraindicated in pregnancy.
var PregnancyCategoryXDrugs = []string{
	"isotretinoina", "isotretinoin",
	"varfarina", "warfarin",
	"metotrexato", "methotrexate",
	"talidomida", "thalidomide",
	"sinvastatina", "simvastatin",
	"atorvastatina", "atorvastatin",
	"finasterida", "finasteride",
	"misoprostol",
}
