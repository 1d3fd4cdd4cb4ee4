package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Objeto descreve um objeto fisicamente presente no bucket.
type Objeto struct {
	Nome         string
	Bytes        int64
	AtualizadoEm time.Time
}

// Cliente define as primitivas do bucket usadas pelo pipeline.
type Cliente interface {
	// Enviar grava um objeto. Com sobrescrever=false a gravação é
	// create-only e colisões retornam ErrConflito.
	Enviar(ctx context.Context, nome string, dados []byte, contentType string, sobrescrever bool) error
	Baixar(ctx context.Context, nome string) ([]byte, error)
	Remover(ctx context.Context, nome string) error
	RemoverLote(ctx context.Context, nomes []string) error
	// ListarTudo percorre o bucket com paginação até esgotar as páginas.
	ListarTudo(ctx context.Context, prefixo string) ([]Objeto, error)
	URLPublica(nome string) string
}

var (
	// ErrConflito indica gravação create-only sobre objeto existente.
	ErrConflito = errors.New("storage: objeto já existe")
	// ErrNaoEncontrado indica objeto ausente no bucket.
	ErrNaoEncontrado = errors.New("storage: objeto não encontrado")
)

// ErroHTTP carrega a resposta crua do provedor para diagnóstico.
type ErroHTTP struct {
	Status int
	Corpo  string
}

func (e *ErroHTTP) Error() string {
	return fmt.Sprintf("storage: resposta %d: %s", e.Status, e.Corpo)
}

// Transitorio informa se vale a pena repetir a operação (throttling ou
// falha do lado do provedor).
func Transitorio(err error) bool {
	var he *ErroHTTP
	if errors.As(err, &he) {
		return he.Status == 429 || he.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type comTimeout interface{ Timeout() bool }
	var t comTimeout
	return errors.As(err, &t) && t.Timeout()
}
