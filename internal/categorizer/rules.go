package categorizer

import (
	"regexp"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// Rule is one deterministic classification rule. Test receives the merchant
// match key (upper-case, no diacritics) and the transaction kind.
type Rule struct {
	Name     string
	Test     func(merchant string, kind domain.TransactionKind) bool
	Category string
	Score    float64
}

// Outcome is a category with the score of the stage that produced it.
type Outcome struct {
	Category string
	Score    float64
}

func matchesAny(pattern string) func(string, domain.TransactionKind) bool {
	re := regexp.MustCompile(pattern)
	return func(merchant string, _ domain.TransactionKind) bool {
		return re.MatchString(merchant)
	}
}

// DefaultRules are evaluated in order. Payment processors come before
// supermarkets because their descriptors often embed the sub-merchant name.
var DefaultRules = []Rule{
	{
		Name:     "fuel",
		Test:     matchesAny(`\b(?:POSTO|AUTO ?POSTO|COMBUSTIVE(?:L|IS)|SHELL|IPIRANGA|PETROBRAS|BR DISTRIBUIDORA|ALE COMBUSTIVEIS|GASOLINA|ETANOL)\b`),
		Category: CategoryTransport,
		Score:    RuleConfidence,
	},
	{
		Name:     "payment_processor",
		Test:     matchesAny(`\b(?:MERCADO ?PAGO|MERCADOPAGO|PAGSEGURO|PAGSEG|PICPAY|STONE|CIELO|GETNET|SUMUP|PAYPAL|EBANX|PAG ?BANK)\b`),
		Category: CategoryShopping,
		Score:    RuleConfidence,
	},
	{
		Name:     "supermarket",
		Test:     matchesAny(`\b(?:SUPERMERCADOS?|HIPERMERCADO|MERCADO|MERCEARIA|ATACADAO|ATACAREJO|ASSAI|CARREFOUR|EXTRA|PAO DE ACUCAR|GUANABARA|ZAFFARI|SAVEGNAGO|BISTEK|ANGELONI|TONIN|SONDA)\b`),
		Category: CategoryFood,
		Score:    RuleConfidence,
	},
	{
		Name:     "telecom",
		Test:     matchesAny(`\b(?:VIVO|CLARO|TIM|OI|NEXTEL|NET SERVICOS|SKY|TELEFONICA|EMBRATEL|ALGAR)\b`),
		Category: CategoryServices,
		Score:    RuleConfidence,
	},
	{
		Name:     "ride_hailing",
		Test:     matchesAny(`\b(?:UBER|99 ?APP|99 ?POP|99 ?TAXI|CABIFY|INDRIVE|BLABLACAR)\b`),
		Category: CategoryTransport,
		Score:    RuleConfidence,
	},
	{
		Name:     "restaurant",
		Test:     matchesAny(`\b(?:RESTAURANTE|REST|LANCHONETE|LANCHES|PIZZARIA|CHURRASCARIA|HAMBURGUERIA|BURGER|SUSHI|BAR E|BAR DO|CANTINA|IFOOD|RAPPI|MCDONALDS|BOBS|SUBWAY|OUTBACK|HABIBS)\b`),
		Category: CategoryFood,
		Score:    RuleConfidence,
	},
	{
		Name:     "pharmacy",
		Test:     matchesAny(`\b(?:FARMACIAS?|DROGARIAS?|DROGA ?RAIA|DROGASIL|PAGUE ?MENOS|PANVEL|PACHECO|SAO JOAO FARMACIAS)\b`),
		Category: CategoryHealth,
		Score:    RuleConfidence,
	},
	{
		Name:     "call_center",
		Test:     matchesAny(`\b(?:CALL ?CENTER|TELEATENDIMENTO|CENTRAL DE ATENDIMENTO|CONTACT ?CENTER|SAC)\b`),
		Category: CategoryServices,
		Score:    RuleConfidence,
	},
	{
		Name:     "streaming",
		Test:     matchesAny(`\b(?:NETFLIX|SPOTIFY|DISNEY|HBO ?MAX|MAX|PRIME VIDEO|AMAZON PRIME|GLOBOPLAY|DEEZER|YOUTUBE ?PREMIUM|APPLE ?COM ?BILL|PARAMOUNT|CRUNCHYROLL)\b`),
		Category: CategorySubscriptions,
		Score:    RuleConfidence,
	},
	{
		Name:     "education",
		Test:     matchesAny(`\b(?:ESCOLA|COLEGIO|FACULDADE|UNIVERSIDADE|UNIV|CURSO|CURSOS|EDUCACAO|ENSINO|ALURA|UDEMY|COURSERA|IDIOMAS)\b`),
		Category: CategoryEducation,
		Score:    RuleConfidence,
	},
	{
		Name: "bank_fee",
		Test: func(_ string, kind domain.TransactionKind) bool {
			return kind == domain.KindFee
		},
		Category: CategoryBankFees,
		Score:    RuleConfidence,
	},
}

// MatchRules returns the outcome of the first rule whose test passes, or nil.
func MatchRules(rules []Rule, merchant string, kind domain.TransactionKind) *Outcome {
	for _, r := range rules {
		if r.Test != nil && r.Test(merchant, kind) {
			return &Outcome{Category: r.Category, Score: r.Score}
		}
	}
	return nil
}
