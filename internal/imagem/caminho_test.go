package imagem

import "testing"

func TestCaminhoBase(t *testing.T) {
	casos := []struct {
		entrada  string
		esperado string
	}{
		{"170000000-abc123", "170000000-abc123"},
		{"170000000-abc123-thumb.webp", "170000000-abc123"},
		{"170000000-abc123-original.webp", "170000000-abc123"},
		{"170000000-abc123-large", "170000000-abc123"},
		{"170000000-abc123.jpg", "170000000-abc123"},
		{"170000000-abc123.JPG", "170000000-abc123"},
		{"produtos/170000000-abc123-medium.webp", "produtos/170000000-abc123"},
		{"170000000-abc123-small.webp?token=xyz", "170000000-abc123"},
		{"  170000000-abc123-thumb.webp ", "170000000-abc123"},
		{"", ""},
	}

	for _, c := range casos {
		if got := CaminhoBase(c.entrada); got != c.esperado {
			t.Errorf("CaminhoBase(%q) = %q, esperado %q", c.entrada, got, c.esperado)
		}
	}
}

func TestCaminhoBaseIdempotente(t *testing.T) {
	entradas := []string{
		"170000000-abc123-thumb.webp",
		"170000000-abc123-original-original",
		"pasta/170000000-abc123-large.png",
		"170000000-abc123",
	}

	for _, entrada := range entradas {
		uma := CaminhoBase(entrada)
		duas := CaminhoBase(uma)
		if uma != duas {
			t.Errorf("CaminhoBase não é idempotente para %q: %q != %q", entrada, uma, duas)
		}
	}
}

func TestNomeObjetoRoundTrip(t *testing.T) {
	caminhos := []string{
		"170000000-abc123",
		"170000000-abc123.jpg",
		"170000000-abc123-thumb.webp",
		"produtos/170000000-abc123",
	}

	for _, p := range caminhos {
		for _, s := range Todos() {
			nome := NomeObjeto(p, s)
			if got, want := CaminhoBase(nome), CaminhoBase(p); got != want {
				t.Errorf("CaminhoBase(NomeObjeto(%q, %s)) = %q, esperado %q", p, s, got, want)
			}
		}
	}
}

func TestNomeObjeto(t *testing.T) {
	if got := NomeObjeto("170000000-abc123", TamanhoThumb); got != "170000000-abc123-thumb.webp" {
		t.Fatalf("NomeObjeto = %q", got)
	}
	// Reaplicar sobre um nome já derivado não acumula sufixos.
	if got := NomeObjeto("170000000-abc123-large.webp", TamanhoSmall); got != "170000000-abc123-small.webp" {
		t.Fatalf("NomeObjeto sobre nome derivado = %q", got)
	}
}

func TestTemSufixo(t *testing.T) {
	casos := map[string]bool{
		"170000000-abc123-thumb.webp":    true,
		"170000000-abc123-original.webp": true,
		"170000000-abc123.jpg":           false,
		"170000000-abc123":               false,
		"thumbnail.jpg":                  false,
	}

	for entrada, esperado := range casos {
		if got := TemSufixo(entrada); got != esperado {
			t.Errorf("TemSufixo(%q) = %v, esperado %v", entrada, got, esperado)
		}
	}
}
