package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"MARTHA", "MARHTA", 0.9611},
		{"DWAYNE", "DUANE", 0.84},
		{"DIXON", "DICKSONX", 0.8133},
		{"CRATE", "TRACE", 0.7333},
		{"PADARIA PAO DORADO", "PADARIA PAO DOURADO", 0.9895},
		{"SAME", "SAME", 1},
		{"", "ANYTHING", 0},
		{"ABC", "XYZ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaroWinkler(tt.a, tt.b), 0.0005)
		})
	}
}

func TestJaroWinkler_Symmetric(t *testing.T) {
	pairs := [][2]string{{"MARTHA", "MARHTA"}, {"DIXON", "DICKSONX"}, {"TONIN", "TONIM SUPERMERCADOS"}}
	for _, p := range pairs {
		assert.InDelta(t, JaroWinkler(p[0], p[1]), JaroWinkler(p[1], p[0]), 1e-9)
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Padaria São João  ltda", "PADARIA SAO JOAO LTDA"},
		{"  açaí   ", "ACAI"},
		{"Alimentação", "ALIMENTACAO"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.input))
		})
	}
}

func TestBest(t *testing.T) {
	entities := []domain.RegistryEntity{
		{RegistryID: "1", DisplayName: "Auto Peças Brasília", LegalName: "AUTO PECAS BRASILIA LTDA", ActivityCode: "4530-7/03"},
		{RegistryID: "2", DisplayName: "Padaria Pão Dourado", LegalName: "PADARIA E CONFEITARIA PAO DOURADO LTDA", ActivityCode: "4721-1/02"},
	}

	t.Run("picks the closest entity", func(t *testing.T) {
		m := Best("padaria pao dorado", entities, DefaultThreshold)
		require.NotNil(t, m)
		assert.Equal(t, "2", m.RegistryID)
		assert.GreaterOrEqual(t, m.Score, 0.95)
	})

	t.Run("uses the better of display and legal name", func(t *testing.T) {
		m := Best("AUTO PECAS BRASILIA LTDA", entities, DefaultThreshold)
		require.NotNil(t, m)
		assert.Equal(t, "1", m.RegistryID)
		assert.Equal(t, 1.0, m.Score)
	})

	t.Run("rejects below threshold", func(t *testing.T) {
		assert.Nil(t, Best("XYZ UNKNOWN MERCHANT", entities, DefaultThreshold))
	})

	t.Run("empty query never matches", func(t *testing.T) {
		assert.Nil(t, Best("   ", entities, 0))
	})

	t.Run("empty registry", func(t *testing.T) {
		assert.Nil(t, Best("PADARIA", nil, DefaultThreshold))
	})
}
