package reconcilia

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/storage"
	"github.com/vitrineloja/imagens/internal/util"
)

// FonteReferencias entrega o conjunto de caminhos canônicos em uso.
type FonteReferencias interface {
	Construir(ctx context.Context) (map[string]struct{}, error)
}

// Falha registra um objeto que não pôde ser removido.
type Falha struct {
	Nome string
	Erro string
}

// Relatorio resume uma execução do reconciliador.
type Relatorio struct {
	Execucao          string
	DryRun            bool
	TotalStorage      int
	TotalReferenciado int
	Orfaos            int
	Removidos         []string
	Falhas            []Falha
	BytesLiberados    int64
	ArquivoManifesto  string
}

// Opcoes controla uma execução.
type Opcoes struct {
	// Aplicar libera a exclusão. Desligado por padrão: toda entrada é
	// dry-run até alguém pedir o contrário explicitamente.
	Aplicar bool
	// Limite corta a lista de candidatos (0 = sem corte).
	Limite int
}

// Reconciliador computa a diferença entre o bucket e o catálogo e
// remove os órfãos em lotes cadenciados.
type Reconciliador struct {
	storage      storage.Cliente
	referencias  FonteReferencias
	dirManifesto string
	tamanhoLote  int
	cadencia     *rate.Limiter
}

// NovoReconciliador monta o reconciliador. pausa é o intervalo mínimo
// entre lotes de exclusão.
func NovoReconciliador(cliente storage.Cliente, referencias FonteReferencias, dirManifesto string, tamanhoLote int, pausa time.Duration) *Reconciliador {
	if tamanhoLote <= 0 {
		tamanhoLote = 50
	}
	if pausa <= 0 {
		pausa = 500 * time.Millisecond
	}
	return &Reconciliador{
		storage:      cliente,
		referencias:  referencias,
		dirManifesto: dirManifesto,
		tamanhoLote:  tamanhoLote,
		cadencia:     rate.NewLimiter(rate.Every(pausa), 1),
	}
}

// Executar roda uma reconciliação completa: snapshot fresco dos dois
// lados, manifesto em disco e só então exclusão. Falha de item não
// aborta a execução; erro fatal (catálogo ou listagem indisponível) sim.
func (r *Reconciliador) Executar(ctx context.Context, opcoes Opcoes) (*Relatorio, error) {
	execucao := util.NovoID()

	referenciados, err := r.referencias.Construir(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcilia: índice de referências: %w", err)
	}

	objetos, err := r.storage.ListarTudo(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("reconcilia: listagem do bucket: %w", err)
	}

	var orfaos []storage.Objeto
	for _, obj := range objetos {
		if _, usado := referenciados[imagem.CaminhoBase(obj.Nome)]; usado {
			continue
		}
		orfaos = append(orfaos, obj)
	}
	if opcoes.Limite > 0 && len(orfaos) > opcoes.Limite {
		orfaos = orfaos[:opcoes.Limite]
	}

	relatorio := &Relatorio{
		Execucao:          execucao,
		DryRun:            !opcoes.Aplicar,
		TotalStorage:      len(objetos),
		TotalReferenciado: len(referenciados),
		Orfaos:            len(orfaos),
	}

	itens := make([]ItemManifesto, 0, len(orfaos))
	for _, obj := range orfaos {
		itens = append(itens, ItemManifesto{Nome: obj.Nome, Bytes: obj.Bytes})
	}
	manifesto, err := escreverManifesto(r.dirManifesto, Manifesto{
		Execucao: execucao,
		GeradoEm: time.Now().UTC(),
		DryRun:   relatorio.DryRun,
		Total:    len(itens),
		Objetos:  itens,
	})
	if err != nil {
		return nil, err
	}
	relatorio.ArquivoManifesto = manifesto

	log.Info().
		Str("execucao", execucao).
		Int("storage", relatorio.TotalStorage).
		Int("referenciados", relatorio.TotalReferenciado).
		Int("orfaos", relatorio.Orfaos).
		Bool("dry_run", relatorio.DryRun).
		Str("manifesto", manifesto).
		Msg("reconciliação calculada")

	if relatorio.DryRun {
		return relatorio, nil
	}

	tamanhos := make(map[string]int64, len(orfaos))
	for _, obj := range orfaos {
		tamanhos[obj.Nome] = obj.Bytes
	}

	for inicio := 0; inicio < len(orfaos); inicio += r.tamanhoLote {
		if err := r.cadencia.Wait(ctx); err != nil {
			return relatorio, err
		}

		fim := inicio + r.tamanhoLote
		if fim > len(orfaos) {
			fim = len(orfaos)
		}
		nomes := make([]string, 0, fim-inicio)
		for _, obj := range orfaos[inicio:fim] {
			nomes = append(nomes, obj.Nome)
		}

		if err := r.storage.RemoverLote(ctx, nomes); err != nil {
			log.Warn().Err(err).Int("lote", inicio/r.tamanhoLote).Msg("lote falhou; caindo para exclusão individual")
			r.removerUmAUm(ctx, nomes, tamanhos, relatorio)
			continue
		}

		for _, nome := range nomes {
			relatorio.Removidos = append(relatorio.Removidos, nome)
			relatorio.BytesLiberados += tamanhos[nome]
		}
	}

	log.Info().
		Str("execucao", execucao).
		Int("removidos", len(relatorio.Removidos)).
		Int("falhas", len(relatorio.Falhas)).
		Int64("bytes_liberados", relatorio.BytesLiberados).
		Msg("reconciliação concluída")

	return relatorio, nil
}

// removerUmAUm trata o fallback do lote: um objeto ruim não pode
// bloquear a remoção dos demais.
func (r *Reconciliador) removerUmAUm(ctx context.Context, nomes []string, tamanhos map[string]int64, relatorio *Relatorio) {
	for _, nome := range nomes {
		if err := r.storage.Remover(ctx, nome); err != nil {
			relatorio.Falhas = append(relatorio.Falhas, Falha{Nome: nome, Erro: err.Error()})
			continue
		}
		relatorio.Removidos = append(relatorio.Removidos, nome)
		relatorio.BytesLiberados += tamanhos[nome]
	}
}
