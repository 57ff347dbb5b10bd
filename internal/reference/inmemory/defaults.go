package inmemory

import (
	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

func entry(pattern, name, category string, confidence float64) domain.DictionaryEntry {
	return domain.DictionaryEntry{Pattern: pattern, CanonicalName: name, Category: category, Confidence: confidence}
}

// DefaultDictionary lists well-known brands. Patterns are brand names only;
// generic words belong in the rules and keyword tables.
func DefaultDictionary() []domain.DictionaryEntry {
	return []domain.DictionaryEntry{
		entry("TONIN", "Tonin Supermercados", categorizer.CategoryFood, 0.98),
		entry("CARREFOUR", "Carrefour", categorizer.CategoryFood, 0.97),
		entry("PAO DE ACUCAR", "Pão de Açúcar", categorizer.CategoryFood, 0.97),
		entry("ASSAI", "Assaí Atacadista", categorizer.CategoryFood, 0.97),
		entry("ATACADAO", "Atacadão", categorizer.CategoryFood, 0.97),
		entry("IFOOD", "iFood", categorizer.CategoryFood, 0.98),
		entry("UBER EATS", "Uber Eats", categorizer.CategoryFood, 0.98),
		entry("MCDONALDS", "McDonald's", categorizer.CategoryFood, 0.97),
		entry("MC DONALDS", "McDonald's", categorizer.CategoryFood, 0.97),
		entry("BURGER KING", "Burger King", categorizer.CategoryFood, 0.97),
		entry("UBER", "Uber", categorizer.CategoryTransport, 0.96),
		entry("99APP", "99", categorizer.CategoryTransport, 0.96),
		entry("SEM PARAR", "Sem Parar", categorizer.CategoryTransport, 0.97),
		entry("LOCALIZA", "Localiza", categorizer.CategoryTransport, 0.96),
		entry("IPIRANGA", "Ipiranga", categorizer.CategoryTransport, 0.95),
		entry("NETFLIX", "Netflix", categorizer.CategorySubscriptions, 0.99),
		entry("SPOTIFY", "Spotify", categorizer.CategorySubscriptions, 0.99),
		entry("AMAZONPRIME", "Amazon Prime", categorizer.CategorySubscriptions, 0.98),
		entry("GLOBOPLAY", "Globoplay", categorizer.CategorySubscriptions, 0.98),
		entry("AMAZON", "Amazon", categorizer.CategoryShopping, 0.95),
		entry("MERCADOLIVRE", "Mercado Livre", categorizer.CategoryShopping, 0.96),
		entry("MAGALU", "Magazine Luiza", categorizer.CategoryShopping, 0.96),
		entry("SHOPEE", "Shopee", categorizer.CategoryShopping, 0.96),
		entry("RENNER", "Lojas Renner", categorizer.CategoryShopping, 0.96),
		entry("DROGASIL", "Drogasil", categorizer.CategoryHealth, 0.98),
		entry("DROGA RAIA", "Droga Raia", categorizer.CategoryHealth, 0.98),
		entry("PAGUE MENOS", "Pague Menos", categorizer.CategoryHealth, 0.97),
		entry("SMARTFIT", "Smart Fit", categorizer.CategoryLeisure, 0.97),
		entry("SMART FIT", "Smart Fit", categorizer.CategoryLeisure, 0.97),
		entry("CINEMARK", "Cinemark", categorizer.CategoryLeisure, 0.97),
		entry("SABESP", "Sabesp", categorizer.CategoryHousing, 0.97),
		entry("CEMIG", "Cemig", categorizer.CategoryHousing, 0.97),
		entry("COPEL", "Copel", categorizer.CategoryHousing, 0.97),
		entry("LATAM", "LATAM Airlines", categorizer.CategoryTravel, 0.97),
		entry("VOEAZUL", "Azul Linhas Aéreas", categorizer.CategoryTravel, 0.97),
		entry("BOOKING", "Booking.com", categorizer.CategoryTravel, 0.97),
		entry("AIRBNB", "Airbnb", categorizer.CategoryTravel, 0.97),
		entry("ALURA", "Alura", categorizer.CategoryEducation, 0.97),
		entry("UDEMY", "Udemy", categorizer.CategoryEducation, 0.97),
	}
}

// DefaultRegistry is a small business registry for merchants the dictionary
// does not know by brand.
func DefaultRegistry() []domain.RegistryEntity {
	return []domain.RegistryEntity{
		{RegistryID: "11222333000181", DisplayName: "Padaria Pão Dourado", LegalName: "Dourado Comercio de Alimentos Ltda", ActivityCode: "4721-1/02"},
		{RegistryID: "12345678000195", DisplayName: "Auto Posto Bandeirantes", LegalName: "Bandeirantes Combustiveis Ltda", ActivityCode: "4731-8/00"},
		{RegistryID: "61412110000155", DisplayName: "Drogaria São Paulo", LegalName: "Drogaria Sao Paulo S.A.", ActivityCode: "4771-7/01"},
		{RegistryID: "23456789000106", DisplayName: "Restaurante Sabor Mineiro", LegalName: "Sabor Mineiro Refeicoes Ltda", ActivityCode: "5611-2/01"},
		{RegistryID: "34567890000117", DisplayName: "Clínica Odontológica Sorriso", LegalName: "Sorriso Servicos Odontologicos Ltda", ActivityCode: "8630-5/04"},
		{RegistryID: "45678901000128", DisplayName: "Colégio Santa Maria", LegalName: "Associacao Educacional Santa Maria", ActivityCode: "8513-9/00"},
		{RegistryID: "56789012000139", DisplayName: "Livraria Cultura", LegalName: "Livraria Cultura S.A.", ActivityCode: "4761-0/01"},
		{RegistryID: "67890123000140", DisplayName: "Hotel Vista Mar", LegalName: "Vista Mar Hotelaria Ltda", ActivityCode: "5510-8/01"},
		{RegistryID: "78901234000151", DisplayName: "Academia Corpo em Forma", LegalName: "Corpo em Forma Atividades Fisicas Ltda", ActivityCode: "9313-1/00"},
		{RegistryID: "89012345000162", DisplayName: "Oficina Mecânica Irmãos Rossi", LegalName: "Irmaos Rossi Reparacao de Veiculos Ltda", ActivityCode: "4520-0/01"},
		{RegistryID: "90123456000173", DisplayName: "Imobiliária Horizonte", LegalName: "Horizonte Administracao de Imoveis Ltda", ActivityCode: "6821-8/01"},
		{RegistryID: "01234567000184", DisplayName: "Pet Shop Amigo Fiel", LegalName: "Amigo Fiel Comercio de Racoes Ltda", ActivityCode: "4789-0/04"},
		{RegistryID: "13579246000190", DisplayName: "Auto Peças Brasília", LegalName: "Auto Pecas Brasilia Ltda", ActivityCode: "4530-7/03"},
	}
}

// DefaultTables returns the built-in reference data.
func DefaultTables() *Tables {
	return &Tables{
		Dictionary:       map[string][]domain.DictionaryEntry{DefaultScope: DefaultDictionary()},
		Registry:         DefaultRegistry(),
		ActivityMappings: categorizer.DefaultActivityMappings,
	}
}
