package envio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/storage"
)

// ErrFalhaParcial indica que nem todas as variantes foram gravadas e a
// remediação (retentativa + rollback) não conseguiu completar o conjunto.
var ErrFalhaParcial = errors.New("envio: conjunto de variantes incompleto")

const contentTypeWebP = "image/webp"

// Orquestrador grava todas as variantes de uma imagem no bucket.
// O contrato é tudo-ou-nada: um caminho canônico só é devolvido ao
// chamador quando todas as classes existem no storage.
type Orquestrador struct {
	storage            storage.Cliente
	timeoutPorVariante time.Duration
	tentativas         int
	esperaBase         time.Duration
}

// Opcao ajusta parâmetros do orquestrador.
type Opcao func(*Orquestrador)

// ComTimeoutPorVariante limita cada put individual.
func ComTimeoutPorVariante(d time.Duration) Opcao {
	return func(o *Orquestrador) { o.timeoutPorVariante = d }
}

// ComTentativas define o número de retentativas por variante que falhou.
func ComTentativas(n int, espera time.Duration) Opcao {
	return func(o *Orquestrador) {
		o.tentativas = n
		o.esperaBase = espera
	}
}

// NovoOrquestrador cria o orquestrador com defaults de produção.
func NovoOrquestrador(cliente storage.Cliente, opcoes ...Opcao) *Orquestrador {
	o := &Orquestrador{
		storage:            cliente,
		timeoutPorVariante: 20 * time.Second,
		tentativas:         2,
		esperaBase:         250 * time.Millisecond,
	}
	for _, op := range opcoes {
		op(o)
	}
	return o
}

// Resultado descreve um envio completo.
type Resultado struct {
	Caminho  string
	URL      string
	Enviados []string
}

type saidaVariante struct {
	nome string
	err  error
}

// Enviar grava todas as variantes em paralelo, com gravação create-only.
// Falhas individuais são retentadas com backoff; se alguma variante
// continuar faltando, as irmãs já gravadas são removidas e o erro
// devolvido embrulha ErrFalhaParcial.
func (o *Orquestrador) Enviar(ctx context.Context, caminho string, variantes []imagem.Variante) (*Resultado, error) {
	return o.enviar(ctx, caminho, variantes, false)
}

// Reenviar grava com sobrescrita. Uso exclusivo do fluxo de reparo.
func (o *Orquestrador) Reenviar(ctx context.Context, caminho string, variantes []imagem.Variante) (*Resultado, error) {
	return o.enviar(ctx, caminho, variantes, true)
}

func (o *Orquestrador) enviar(ctx context.Context, caminho string, variantes []imagem.Variante, sobrescrever bool) (*Resultado, error) {
	if len(variantes) == 0 {
		return nil, errors.New("envio: nenhuma variante para gravar")
	}

	saidas := make([]saidaVariante, len(variantes))

	// Fan-out: espera todas as saídas em vez de abortar na primeira
	// rejeição, para saber exatamente o que precisa de remediação.
	grupo := &errgroup.Group{}
	for i, v := range variantes {
		grupo.Go(func() error {
			saidas[i] = saidaVariante{nome: v.Nome, err: o.enviarUma(ctx, v, sobrescrever)}
			return nil
		})
	}
	_ = grupo.Wait()

	var enviados []string
	var pendentes []imagem.Variante
	for i, saida := range saidas {
		if saida.err == nil {
			enviados = append(enviados, saida.nome)
			continue
		}
		log.Warn().Err(saida.err).Str("objeto", saida.nome).Msg("variante falhou no primeiro envio")
		pendentes = append(pendentes, variantes[i])
	}

	// Retentativa sequencial com backoff das variantes que faltaram.
	var falhas []error
	for _, v := range pendentes {
		if err := o.retentar(ctx, v, sobrescrever); err != nil {
			falhas = append(falhas, fmt.Errorf("%s: %w", v.Nome, err))
			continue
		}
		enviados = append(enviados, v.Nome)
	}

	if len(falhas) > 0 {
		// No reparo os objetos já existiam antes; remover irmãs
		// destruiria dado bom. O rollback vale só para ingestão.
		if !sobrescrever {
			o.desfazer(ctx, enviados)
		}
		return nil, fmt.Errorf("%w (%s): %w", ErrFalhaParcial, caminho, errors.Join(falhas...))
	}

	return &Resultado{
		Caminho:  caminho,
		URL:      o.storage.URLPublica(caminho),
		Enviados: enviados,
	}, nil
}

func (o *Orquestrador) enviarUma(ctx context.Context, v imagem.Variante, sobrescrever bool) error {
	ctxPut, cancelar := context.WithTimeout(ctx, o.timeoutPorVariante)
	defer cancelar()
	return o.storage.Enviar(ctxPut, v.Nome, v.Dados, contentTypeWebP, sobrescrever)
}

func (o *Orquestrador) retentar(ctx context.Context, v imagem.Variante, sobrescrever bool) error {
	var ultimo error
	for tentativa := 1; tentativa <= o.tentativas; tentativa++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.esperaBase * time.Duration(tentativa)):
		}

		ultimo = o.enviarUma(ctx, v, sobrescrever)
		if ultimo == nil {
			return nil
		}
		// Conflito em gravação create-only significa que o objeto já
		// está lá; para fins do conjunto, a variante existe.
		if !sobrescrever && errors.Is(ultimo, storage.ErrConflito) {
			return nil
		}
		if !storage.Transitorio(ultimo) {
			return ultimo
		}
		log.Warn().Err(ultimo).Str("objeto", v.Nome).Int("tentativa", tentativa).Msg("retentando variante")
	}
	return ultimo
}

// desfazer remove as variantes que chegaram a ser gravadas, para nunca
// apontar o catálogo a um caminho com classes faltando. Falha aqui vira
// órfão e será colhida pelo reconciliador.
func (o *Orquestrador) desfazer(ctx context.Context, nomes []string) {
	for _, nome := range nomes {
		ctxDel, cancelar := context.WithTimeout(ctx, o.timeoutPorVariante)
		err := o.storage.Remover(ctxDel, nome)
		cancelar()
		if err != nil {
			log.Error().Err(err).Str("objeto", nome).Msg("rollback de variante falhou; objeto vira órfão")
		}
	}
}
