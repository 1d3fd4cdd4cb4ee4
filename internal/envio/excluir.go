package envio

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vitrineloja/imagens/internal/imagem"
)

// ExcluirPorBase remove todas as variantes que compartilham o caminho
// canônico da URL ou nome informado. O casamento é sempre por
// "base + -": dois caminhos canônicos nunca podem ser prefixo um do
// outro, então "shoe-42" jamais arrasta "shoe-420-...".
func (o *Orquestrador) ExcluirPorBase(ctx context.Context, caminhoOuURL string) ([]string, error) {
	base := imagem.CaminhoBase(caminhoOuURL)
	if base == "" {
		return nil, errors.New("envio: caminho vazio")
	}

	prefixo := base + "-"
	objetos, err := o.storage.ListarTudo(ctx, prefixo)
	if err != nil {
		// Sem listagem, remove ao menos o caminho literal informado.
		log.Warn().Err(err).Str("base", base).Msg("listagem falhou; removendo caminho literal")
		if errDel := o.storage.Remover(ctx, strings.TrimSpace(caminhoOuURL)); errDel != nil {
			return nil, errDel
		}
		return []string{strings.TrimSpace(caminhoOuURL)}, nil
	}

	var removidos []string
	var falhas []error
	for _, obj := range objetos {
		if !strings.HasPrefix(obj.Nome, prefixo) {
			continue
		}
		if err := o.storage.Remover(ctx, obj.Nome); err != nil {
			falhas = append(falhas, err)
			continue
		}
		removidos = append(removidos, obj.Nome)
	}

	if len(falhas) > 0 {
		return removidos, errors.Join(falhas...)
	}
	return removidos, nil
}
