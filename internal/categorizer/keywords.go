package categorizer

import (
	"regexp"
)

// KeywordWeight adds Weight to Category whenever Pattern matches.
type KeywordWeight struct {
	Pattern  *regexp.Regexp
	Category string
	Weight   float64
}

func keyword(pattern, category string, weight float64) KeywordWeight {
	return KeywordWeight{Pattern: regexp.MustCompile(pattern), Category: category, Weight: weight}
}

// DefaultKeywordWeights are weak signals used only after the rules.
var DefaultKeywordWeights = []KeywordWeight{
	keyword(`\b(?:PADARIA|PANIFICADORA|PANIFICACAO)\b`, CategoryFood, 3),
	keyword(`\b(?:ACOUGUE|HORTIFRUTI|SACOLAO|FRUTARIA|PEIXARIA)\b`, CategoryFood, 3),
	keyword(`\b(?:DOCES|DOCERIA|CAFE|CAFETERIA|CONFEITARIA|SORVETERIA)\b`, CategoryFood, 2),
	keyword(`\b(?:ESTACIONAMENTO|PEDAGIO|SEM PARAR|CONECTCAR|VELOE)\b`, CategoryTransport, 3),
	keyword(`\b(?:OFICINA|PNEUS|AUTO PECAS|MECANICA|LAVA ?JATO)\b`, CategoryTransport, 2),
	keyword(`\b(?:CLINICA|HOSPITAL|LABORATORIO|ODONTO\w*|MEDIC\w*|EXAMES)\b`, CategoryHealth, 3),
	keyword(`\b(?:ACADEMIA|CINEMA|TEATRO|INGRESSOS?|SHOW|CLUBE)\b`, CategoryLeisure, 2),
	keyword(`\b(?:LOJAS?|MAGAZINE|COMERCIO|VAREJO|BAZAR)\b`, CategoryShopping, 1),
	keyword(`\b(?:ALUGUEL|CONDOMINIO|IMOBILIARIA)\b`, CategoryHousing, 3),
	keyword(`\b(?:ENERGIA|ELETRICIDADE|SANEAMENTO|AGUA|ESGOTO|GAS)\b`, CategoryHousing, 2),
	keyword(`\b(?:HOTEL|POUSADA|HOSTEL|PASSAGENS?|AEREA|TURISMO)\b`, CategoryTravel, 2),
	keyword(`\b(?:IPTU|IPVA|DARF|DAS|GPS|RECEITA FEDERAL|DETRAN|PREFEITURA)\b`, CategoryTaxes, 3),
	keyword(`\b(?:PET|PETSHOP|VETERINARI\w*|RACOES)\b`, CategoryShopping, 2),
	keyword(`\b(?:SEGURO|SEGUROS|SEGURADORA)\b`, CategoryServices, 2),
	keyword(`\b(?:CONTABILIDADE|CONTABIL|ADVOCACIA|CARTORIO|DESPACHANTE)\b`, CategoryServices, 2),
}

// ScoreKeywords sums the weights of every matching keyword per category and
// returns the heaviest category, or nil when nothing matched. The score is the
// winner's total over the largest total, capped at KeywordConfidenceCap; since
// the winner holds the largest total, a match always scores the cap.
func ScoreKeywords(weights []KeywordWeight, merchant string) *Outcome {
	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, kw := range weights {
		if !kw.Pattern.MatchString(merchant) {
			continue
		}
		if _, seen := totals[kw.Category]; !seen {
			order = append(order, kw.Category)
		}
		totals[kw.Category] += kw.Weight
	}
	if len(order) == 0 {
		return nil
	}

	// Ties go to the category matched first.
	best := order[0]
	maxTotal := totals[best]
	for _, c := range order[1:] {
		if totals[c] > maxTotal {
			best, maxTotal = c, totals[c]
		}
	}
	if maxTotal <= 0 {
		return nil
	}
	return &Outcome{Category: best, Score: min(KeywordConfidenceCap, totals[best]/maxTotal)}
}
