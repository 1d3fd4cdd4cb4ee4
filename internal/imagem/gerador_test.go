package imagem

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func imagemPNG(t *testing.T, largura, altura int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, largura, altura))
	for x := 0; x < largura; x += 50 {
		for y := 0; y < altura; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestGerarDimensoes3000x4000(t *testing.T) {
	gerador := NovoGerador(PoliticaPadrao())

	variantes, err := gerador.Gerar("170000000-abc123", imagemPNG(t, 3000, 4000), nil)
	if err != nil {
		t.Fatalf("Gerar: %v", err)
	}
	if len(variantes) != 5 {
		t.Fatalf("esperava 5 variantes, veio %d", len(variantes))
	}

	esperado := map[Tamanho][2]int{
		TamanhoThumb:    {112, 149},
		TamanhoSmall:    {400, 533},
		TamanhoMedium:   {800, 1067},
		TamanhoLarge:    {1200, 1600},
		TamanhoOriginal: {3000, 4000},
	}

	for _, v := range variantes {
		dims, ok := esperado[v.Tamanho]
		if !ok {
			t.Fatalf("classe inesperada %q", v.Tamanho)
		}
		if v.Largura != dims[0] || v.Altura != dims[1] {
			t.Errorf("%s: %dx%d, esperado %dx%d", v.Tamanho, v.Largura, v.Altura, dims[0], dims[1])
		}
		if len(v.Dados) == 0 {
			t.Errorf("%s: variante sem bytes", v.Tamanho)
		}
		if v.Nome != "170000000-abc123-"+string(v.Tamanho)+".webp" {
			t.Errorf("%s: nome inesperado %q", v.Tamanho, v.Nome)
		}
	}
}

func TestGerarNuncaAmplia(t *testing.T) {
	gerador := NovoGerador(PoliticaPadrao())

	variantes, err := gerador.Gerar("pequena-1", imagemPNG(t, 300, 300), nil)
	if err != nil {
		t.Fatalf("Gerar: %v", err)
	}

	for _, v := range variantes {
		if v.Largura != 300 || v.Altura != 300 {
			t.Errorf("%s: %dx%d, imagem de 300x300 nunca deve ser ampliada", v.Tamanho, v.Largura, v.Altura)
		}
	}
}

func TestGerarPoliticaAlternativa(t *testing.T) {
	politica := NovaPolitica(
		map[Tamanho]int{TamanhoThumb: 10},
		map[Tamanho]int{TamanhoThumb: 50},
	)
	gerador := NovoGerador(politica)

	variantes, err := gerador.Gerar("x-1", imagemPNG(t, 100, 40), []Tamanho{TamanhoThumb})
	if err != nil {
		t.Fatalf("Gerar: %v", err)
	}
	if len(variantes) != 1 {
		t.Fatalf("esperava 1 variante, veio %d", len(variantes))
	}
	if variantes[0].Largura != 10 || variantes[0].Altura != 4 {
		t.Errorf("thumb: %dx%d, esperado 10x4", variantes[0].Largura, variantes[0].Altura)
	}
}

func TestGerarBytesInvalidos(t *testing.T) {
	gerador := NovoGerador(PoliticaPadrao())

	if _, err := gerador.Gerar("x-1", []byte("isto não é uma imagem"), nil); err == nil {
		t.Fatal("esperava erro para bytes corrompidos")
	}
}
