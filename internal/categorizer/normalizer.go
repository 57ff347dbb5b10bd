package categorizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

var (
	// Everything up to and including the first payment-rail marker, used for
	// transfers where only the counterparty name is interesting.
	railPrefixPattern = regexp.MustCompile(`(?i)^.*?\b(?:PIX|TED|DOC|TEF|TRANSF\pL*)\b(?:\s+(?:ENVIAD[OA]|RECEBID[OA]|EMITID[OA]|ENV|REC|QRS|QR\s?CODE|VIA|INTERNET|ELETR[OÔ]NICA))*`)

	currencyPattern = regexp.MustCompile(`(?i)(?:R\$|US\$|€|\$)\s*[-+]?\s*\d[\d.,]*`)
	decimalPattern  = regexp.MustCompile(`[-+]?\b\d{1,3}(?:\.\d{3})*,\d{2}\b|[-+]?\b\d+\.\d{2}\b`)
	documentPattern = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b|\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)
	datePattern     = regexp.MustCompile(`\b\d{2}/\d{2}(?:/\d{2,4})?\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{2}:\d{2}(?::\d{2})?\b`)
	maskedPattern   = regexp.MustCompile(`(?i)\*+[\d*]*|\bX{3,}\d*\b`)
	separatorRun    = regexp.MustCompile(`[-_/\\*|:;.,#()\[\]{}+="!?@%º°]+`)

	authCodePattern = regexp.MustCompile(`(?i)\b(?:AUT|AUTORIZA[CÇ][AÃ]O|NSU|C[OÓ]D|C[OÓ]DIGO|DOCTO|REF|ID)\s+[A-Z0-9]*\d[A-Z0-9]*\b`)
	railPhrases     = regexp.MustCompile(`(?i)\bCOMPRAS?\s+(?:NO|COM)\s+(?:CART[AÃ]O\s+)?(?:D[EÉ]BITO|CR[EÉ]DITO)\b|\bPAGAMENTO\s+DE\s+(?:BOLETO|T[IÍ]TULO)\b`)
	boilerplateWord = regexp.MustCompile(`(?i)\b(?:PAGAMENTO|PAGTO|PGTO|PAG|RECEBIMENTO|RECEBID[OA]|ENVIAD[OA]|EMITID[OA]|PIX|TED|DOC|TEF|TRANSF\pL*|COMPRAS?|NACIONAIS|INTERNACIONAL|CART[AÃ]O|D[EÉ]BITO|CR[EÉ]DITO|DEB|CRED|CARD|VISA|MASTERCARD|MASTER|ELO|MAESTRO|ELECTRON|HIPERCARD|AMEX|QRS|QR|BOLETO|BLT|T[IÍ]TULO|TIT|CPF|CNPJ)\b`)
	identifierRun   = regexp.MustCompile(`\b\d{10,}\b`)
	internalCodeRun = regexp.MustCompile(`\b\d{4,8}\b`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	slugSeparator   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Connectors kept lower-case inside a title-cased name.
var lowerConnectors = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true, "e": true,
}

// Normalize extracts the canonical merchant name from a bank description.
// It never fails; an empty CanonicalName means the merchant is unidentified.
func Normalize(description string) domain.NormalizedMerchant {
	return normalize(description, false)
}

// NormalizeForKind is Normalize with the transfer heuristics of kind applied:
// for PIX and wire transfers the rail prefix is dropped so only the
// counterparty remains.
func NormalizeForKind(description string, kind domain.TransactionKind) domain.NormalizedMerchant {
	return normalize(description, kind.IsTransfer())
}

func normalize(description string, transfer bool) domain.NormalizedMerchant {
	fragment := strings.TrimSpace(norm.NFC.String(description))
	if transfer {
		if rest := strings.TrimSpace(railPrefixPattern.ReplaceAllString(fragment, "")); rest != "" {
			fragment = rest
		}
	}

	s := fragment
	for _, p := range []*regexp.Regexp{currencyPattern, decimalPattern, documentPattern, datePattern, maskedPattern} {
		s = p.ReplaceAllString(s, " ")
	}
	s = separatorRun.ReplaceAllString(s, " ")

	// Removing one token can bring an authorization label next to its code,
	// so strip until nothing changes.
	for i := 0; i < 8; i++ {
		next := s
		for _, p := range []*regexp.Regexp{authCodePattern, railPhrases, boilerplateWord, identifierRun, internalCodeRun} {
			next = p.ReplaceAllString(next, " ")
		}
		next = strings.TrimSpace(whitespaceRun.ReplaceAllString(next, " "))
		if next == s {
			break
		}
		s = next
	}

	canonical := titleCase(s)
	return domain.NormalizedMerchant{
		RawFragment:   fragment,
		CanonicalName: canonical,
		Slug:          Slugify(canonical),
		MatchKey:      similarity.Fold(canonical),
	}
}

func titleCase(s string) string {
	caser := cases.Title(language.BrazilianPortuguese)
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if i > 0 && lowerConnectors[w] {
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Slugify returns a lowercase, hyphenated, ASCII-only form of s.
func Slugify(s string) string {
	slug := slugSeparator.ReplaceAllString(strings.ToLower(similarity.Fold(s)), "-")
	return strings.Trim(slug, "-")
}
