package reprocessa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vitrineloja/imagens/internal/catalogo"
	"github.com/vitrineloja/imagens/internal/envio"
	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/storage"
)

// ErrOriginalNaoEncontrado indica linha de catálogo sem bytes originais
// em nenhuma das extensões candidatas.
var ErrOriginalNaoEncontrado = errors.New("reprocessa: original não encontrado no bucket")

// Extensões legadas onde originais pré-pipeline podem estar guardados.
var extensoesCandidatas = []string{"", ".jpg", ".jpeg", ".png", ".webp"}

// FonteCatalogo entrega as referências brutas de imagem.
type FonteCatalogo interface {
	ListarReferencias(ctx context.Context) ([]catalogo.Referencia, error)
}

// Reenviador grava o conjunto de variantes com sobrescrita.
type Reenviador interface {
	Reenviar(ctx context.Context, caminho string, variantes []imagem.Variante) (*envio.Resultado, error)
}

// ItemFalha registra uma referência que não pôde ser reparada.
type ItemFalha struct {
	Caminho string
	Erro    string
}

// Resumo é o fechamento de uma execução do motor.
type Resumo struct {
	DryRun      bool
	Candidatos  []string
	Processados int
	Pulados     int
	Falhas      []ItemFalha
}

// Opcoes controla uma execução do motor.
type Opcoes struct {
	// Executar libera gravação; desligado, o motor apenas lista o que
	// seria reparado.
	Executar bool
	// Limite corta a quantidade de itens reparados (0 = sem corte).
	Limite int
}

// Motor localiza imagens que nunca passaram pelo pipeline e as
// reprocessa. Idempotente: referências já derivadas (com sufixo) e
// caminhos cujo original já existe no bucket são pulados, então uma
// segunda passada sobre o mesmo catálogo não gera nenhum upload.
type Motor struct {
	catalogo   FonteCatalogo
	storage    storage.Cliente
	gerador    *imagem.Gerador
	envio      Reenviador
	dominioURL string
	cadencia   *rate.Limiter
}

// NovoMotor monta o motor de reprocessamento.
func NovoMotor(fonte FonteCatalogo, cliente storage.Cliente, gerador *imagem.Gerador, reenviador Reenviador, dominioURL string, pausa time.Duration) *Motor {
	if pausa <= 0 {
		pausa = 300 * time.Millisecond
	}
	return &Motor{
		catalogo:   fonte,
		storage:    cliente,
		gerador:    gerador,
		envio:      reenviador,
		dominioURL: dominioURL,
		cadencia:   rate.NewLimiter(rate.Every(pausa), 1),
	}
}

// Executar percorre o catálogo sequencialmente; dentro de cada imagem as
// variantes continuam paralelas via orquestrador. Falha de item é
// registrada e a execução segue.
func (m *Motor) Executar(ctx context.Context, opcoes Opcoes) (*Resumo, error) {
	referencias, err := m.catalogo.ListarReferencias(ctx)
	if err != nil {
		return nil, fmt.Errorf("reprocessa: catálogo: %w", err)
	}

	objetos, err := m.storage.ListarTudo(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("reprocessa: listagem do bucket: %w", err)
	}
	existentes := make(map[string]struct{}, len(objetos))
	for _, obj := range objetos {
		existentes[obj.Nome] = struct{}{}
	}

	resumo := &Resumo{DryRun: !opcoes.Executar}
	vistos := make(map[string]struct{})

	for _, ref := range referencias {
		if imagem.TemSufixo(ref.Valor) {
			resumo.Pulados++
			continue
		}

		base, ok := catalogo.NormalizarReferencia(ref.Valor, m.dominioURL)
		if !ok {
			resumo.Pulados++
			continue
		}
		if _, visto := vistos[base]; visto {
			continue
		}
		vistos[base] = struct{}{}

		if _, saudavel := existentes[imagem.NomeObjeto(base, imagem.TamanhoOriginal)]; saudavel {
			resumo.Pulados++
			continue
		}

		if opcoes.Limite > 0 && len(resumo.Candidatos) >= opcoes.Limite {
			break
		}
		resumo.Candidatos = append(resumo.Candidatos, base)

		if resumo.DryRun {
			continue
		}

		if err := m.cadencia.Wait(ctx); err != nil {
			return resumo, err
		}
		if err := m.reparar(ctx, base); err != nil {
			log.Warn().Err(err).Str("caminho", base).Msg("reparo falhou")
			resumo.Falhas = append(resumo.Falhas, ItemFalha{Caminho: base, Erro: err.Error()})
			continue
		}
		resumo.Processados++
	}

	return resumo, nil
}

func (m *Motor) reparar(ctx context.Context, base string) error {
	original, err := m.localizarOriginal(ctx, base)
	if err != nil {
		return err
	}

	variantes, err := m.gerador.Gerar(base, original, nil)
	if err != nil {
		return err
	}

	_, err = m.envio.Reenviar(ctx, base, variantes)
	return err
}

func (m *Motor) localizarOriginal(ctx context.Context, base string) ([]byte, error) {
	for _, ext := range extensoesCandidatas {
		dados, err := m.storage.Baixar(ctx, base+ext)
		if err == nil {
			return dados, nil
		}
		if errors.Is(err, storage.ErrNaoEncontrado) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrOriginalNaoEncontrado, base)
}
