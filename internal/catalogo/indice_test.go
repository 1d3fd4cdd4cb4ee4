package catalogo

import "testing"

const dominioTeste = "https://cdn.exemplo.com.br"

func TestMontarIndice(t *testing.T) {
	referencias := []Referencia{
		{Dono: "produto", ID: 1, Campo: "foto_principal", Valor: dominioTeste + "/170-aaa"},
		{Dono: "produto", ID: 1, Campo: "fotos", Valor: dominioTeste + "/170-bbb-original.webp"},
		{Dono: "produto", ID: 2, Campo: "fotos", Valor: "170-ccc"},
		{Dono: "banner", ID: 3, Campo: "imagem_url", Valor: dominioTeste + "/170-ddd-large.webp"},
		// Fora do nosso domínio: não entra no índice.
		{Dono: "banner", ID: 4, Campo: "imagem_url", Valor: "https://outrodominio.com/170-eee.jpg"},
		{Dono: "produto", ID: 5, Campo: "foto_principal", Valor: "   "},
	}

	indice := MontarIndice(referencias, dominioTeste)

	esperados := []string{"170-aaa", "170-bbb", "170-ccc", "170-ddd"}
	if len(indice) != len(esperados) {
		t.Fatalf("índice com %d entradas, esperado %d: %v", len(indice), len(esperados), indice)
	}
	for _, caminho := range esperados {
		if _, ok := indice[caminho]; !ok {
			t.Errorf("índice sem %q", caminho)
		}
	}
	if _, ok := indice["170-eee"]; ok {
		t.Error("URL de domínio alheio não deveria entrar no índice")
	}
}

func TestNormalizarReferencia(t *testing.T) {
	casos := []struct {
		valor    string
		esperado string
		ok       bool
	}{
		{dominioTeste + "/170-abc-thumb.webp", "170-abc", true},
		{dominioTeste + "/produtos/170-abc-medium.webp", "produtos/170-abc", true},
		{"170-abc.jpg", "170-abc", true},
		{"https://outra.com/170-abc.jpg", "", false},
		{"", "", false},
		{dominioTeste + "/", "", false},
	}

	for _, c := range casos {
		got, ok := NormalizarReferencia(c.valor, dominioTeste)
		if ok != c.ok || got != c.esperado {
			t.Errorf("NormalizarReferencia(%q) = (%q, %v), esperado (%q, %v)", c.valor, got, ok, c.esperado, c.ok)
		}
	}
}
