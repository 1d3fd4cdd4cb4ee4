package catalogo

import (
	"context"
	"strings"

	"github.com/vitrineloja/imagens/internal/imagem"
)

// Indexador constrói o conjunto de caminhos canônicos em uso.
type Indexador struct {
	repo       *Repositorio
	dominioURL string
}

// NovoIndexador cria o indexador. dominioURL é o prefixo público do
// bucket (ex.: https://cdn.exemplo.com.br); valores fora dele são de
// outros domínios e ficam fora do índice.
func NovoIndexador(repo *Repositorio, dominioURL string) *Indexador {
	return &Indexador{repo: repo, dominioURL: strings.TrimRight(strings.TrimSpace(dominioURL), "/")}
}

// Construir lê o catálogo e devolve o índice normalizado.
func (i *Indexador) Construir(ctx context.Context) (map[string]struct{}, error) {
	referencias, err := i.repo.ListarReferencias(ctx)
	if err != nil {
		return nil, err
	}
	return MontarIndice(referencias, i.dominioURL), nil
}

// MontarIndice normaliza referências brutas em um conjunto de caminhos
// canônicos. Função pura: toda a lógica de filtro e normalização fica
// testável sem banco.
func MontarIndice(referencias []Referencia, dominioURL string) map[string]struct{} {
	dominio := strings.TrimRight(strings.TrimSpace(dominioURL), "/")
	indice := make(map[string]struct{}, len(referencias))

	for _, ref := range referencias {
		caminho, ok := NormalizarReferencia(ref.Valor, dominio)
		if !ok {
			continue
		}
		indice[caminho] = struct{}{}
	}
	return indice
}

// NormalizarReferencia reduz um valor de catálogo ao caminho canônico.
// URLs de outros domínios são descartadas; valores sem esquema são
// tratados como chaves diretas do bucket.
func NormalizarReferencia(valor, dominioURL string) (string, bool) {
	v := strings.TrimSpace(valor)
	if v == "" {
		return "", false
	}

	if strings.Contains(v, "://") {
		if dominioURL == "" || !strings.HasPrefix(v, dominioURL+"/") {
			return "", false
		}
		v = strings.TrimLeft(strings.TrimPrefix(v, dominioURL), "/")
		if v == "" {
			return "", false
		}
	}

	base := imagem.CaminhoBase(v)
	if base == "" {
		return "", false
	}
	return base, true
}
