package imagem

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

var (
	// ErrFormato indica bytes que não decodificam como imagem.
	ErrFormato = errors.New("imagem: formato não suportado ou bytes corrompidos")
	// ErrDimensoes indica imagem decodificada sem dimensões utilizáveis.
	ErrDimensoes = errors.New("imagem: dimensões indeterminadas")
)

// Variante é uma versão reencodada da imagem original em uma classe.
type Variante struct {
	Tamanho Tamanho
	Dados   []byte
	Largura int
	Altura  int
	Nome    string
}

// Gerador produz o conjunto de variantes de uma imagem original.
type Gerador struct {
	politica Politica
}

// NovoGerador cria um gerador com a política injetada.
func NovoGerador(politica Politica) *Gerador {
	return &Gerador{politica: politica}
}

// Gerar decodifica os bytes originais e produz uma variante por classe
// pedida (todas quando tamanhos é vazio). As dimensões reais vêm sempre
// dos bytes; nunca se amplia uma imagem menor que a largura alvo.
func (g *Gerador) Gerar(caminho string, original []byte, tamanhos []Tamanho) ([]Variante, error) {
	if len(tamanhos) == 0 {
		tamanhos = Todos()
	}

	decodificada, err := imaging.Decode(bytes.NewReader(original), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormato, err)
	}

	limites := decodificada.Bounds()
	largura := limites.Dx()
	altura := limites.Dy()
	if largura <= 0 || altura <= 0 {
		return nil, ErrDimensoes
	}

	variantes := make([]Variante, 0, len(tamanhos))
	for _, t := range tamanhos {
		if !t.Valido() {
			return nil, fmt.Errorf("imagem: classe desconhecida %q", t)
		}

		img := decodificada
		if t != TamanhoOriginal {
			alvo := g.politica.Largura(t)
			if alvo <= 0 {
				return nil, fmt.Errorf("imagem: política sem largura para %q", t)
			}
			if alvo < largura {
				img = imaging.Resize(decodificada, alvo, 0, imaging.Lanczos)
			}
		}

		dados, err := codificarWebP(img, g.politica.Qualidade(t))
		if err != nil {
			return nil, fmt.Errorf("imagem: encode %s: %w", t, err)
		}

		b := img.Bounds()
		variantes = append(variantes, Variante{
			Tamanho: t,
			Dados:   dados,
			Largura: b.Dx(),
			Altura:  b.Dy(),
			Nome:    NomeObjeto(caminho, t),
		})
	}

	return variantes, nil
}

func codificarWebP(img image.Image, qualidade int) ([]byte, error) {
	opcoes, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(qualidade))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opcoes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
