package envio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/storage"
)

// clienteFalso simula o bucket em memória, com falhas programáveis.
type clienteFalso struct {
	mu            sync.Mutex
	objetos       map[string][]byte
	falhasPorNome map[string]int
	erroFixo      map[string]error
	erroListagem  error
	removidos     []string
}

func novoClienteFalso() *clienteFalso {
	return &clienteFalso{
		objetos:       make(map[string][]byte),
		falhasPorNome: make(map[string]int),
		erroFixo:      make(map[string]error),
	}
}

func (c *clienteFalso) Enviar(ctx context.Context, nome string, dados []byte, contentType string, sobrescrever bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.erroFixo[nome]; ok {
		return err
	}
	if c.falhasPorNome[nome] > 0 {
		c.falhasPorNome[nome]--
		return &storage.ErroHTTP{Status: 503, Corpo: "indisponível"}
	}
	if _, existe := c.objetos[nome]; existe && !sobrescrever {
		return fmt.Errorf("%w: %s", storage.ErrConflito, nome)
	}
	c.objetos[nome] = dados
	return nil
}

func (c *clienteFalso) Baixar(ctx context.Context, nome string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dados, ok := c.objetos[nome]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNaoEncontrado, nome)
	}
	return dados, nil
}

func (c *clienteFalso) Remover(ctx context.Context, nome string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objetos, nome)
	c.removidos = append(c.removidos, nome)
	return nil
}

func (c *clienteFalso) RemoverLote(ctx context.Context, nomes []string) error {
	for _, nome := range nomes {
		if err := c.Remover(ctx, nome); err != nil {
			return err
		}
	}
	return nil
}

func (c *clienteFalso) ListarTudo(ctx context.Context, prefixo string) ([]storage.Objeto, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.erroListagem != nil {
		return nil, c.erroListagem
	}
	var lista []storage.Objeto
	for nome, dados := range c.objetos {
		if prefixo == "" || strings.HasPrefix(nome, prefixo) {
			lista = append(lista, storage.Objeto{Nome: nome, Bytes: int64(len(dados))})
		}
	}
	sort.Slice(lista, func(i, j int) bool { return lista[i].Nome < lista[j].Nome })
	return lista, nil
}

func (c *clienteFalso) URLPublica(nome string) string {
	return "https://cdn.exemplo.com.br/" + nome
}

func variantesTeste(caminho string) []imagem.Variante {
	var vs []imagem.Variante
	for _, t := range imagem.Todos() {
		vs = append(vs, imagem.Variante{
			Tamanho: t,
			Dados:   []byte("dados-" + string(t)),
			Nome:    imagem.NomeObjeto(caminho, t),
		})
	}
	return vs
}

func orquestradorTeste(cliente storage.Cliente) *Orquestrador {
	return NovoOrquestrador(cliente,
		ComTimeoutPorVariante(time.Second),
		ComTentativas(2, time.Millisecond))
}

func TestEnviarTodasVariantes(t *testing.T) {
	cliente := novoClienteFalso()
	orq := orquestradorTeste(cliente)

	res, err := orq.Enviar(context.Background(), "170-abc", variantesTeste("170-abc"))
	if err != nil {
		t.Fatalf("Enviar: %v", err)
	}
	if len(res.Enviados) != 5 {
		t.Fatalf("esperava 5 enviados, veio %d", len(res.Enviados))
	}
	if len(cliente.objetos) != 5 {
		t.Fatalf("bucket com %d objetos, esperado 5", len(cliente.objetos))
	}
	if res.URL != "https://cdn.exemplo.com.br/170-abc" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestEnviarRetentaTransitoria(t *testing.T) {
	cliente := novoClienteFalso()
	cliente.falhasPorNome["170-abc-medium.webp"] = 1
	orq := orquestradorTeste(cliente)

	res, err := orq.Enviar(context.Background(), "170-abc", variantesTeste("170-abc"))
	if err != nil {
		t.Fatalf("Enviar deveria completar após retentativa: %v", err)
	}
	if len(res.Enviados) != 5 {
		t.Fatalf("esperava 5 enviados, veio %d", len(res.Enviados))
	}
	if len(cliente.removidos) != 0 {
		t.Errorf("não deveria haver rollback, removidos: %v", cliente.removidos)
	}
}

func TestEnviarFalhaDefinitivaFazRollback(t *testing.T) {
	cliente := novoClienteFalso()
	cliente.erroFixo["170-abc-large.webp"] = &storage.ErroHTTP{Status: 400, Corpo: "rejeitado"}
	orq := orquestradorTeste(cliente)

	_, err := orq.Enviar(context.Background(), "170-abc", variantesTeste("170-abc"))
	if !errors.Is(err, ErrFalhaParcial) {
		t.Fatalf("esperava ErrFalhaParcial, veio %v", err)
	}
	if len(cliente.objetos) != 0 {
		t.Errorf("rollback deveria esvaziar o bucket, sobraram: %v", chaves(cliente.objetos))
	}
}

func TestEnviarConflitoContaComoPresente(t *testing.T) {
	cliente := novoClienteFalso()
	// Simula put que falhou no cliente mas chegou no servidor: a
	// retentativa recebe conflito e deve tratar a variante como gravada.
	cliente.objetos["170-abc-thumb.webp"] = []byte("já estava lá")
	orq := orquestradorTeste(cliente)

	res, err := orq.Enviar(context.Background(), "170-abc", variantesTeste("170-abc"))
	if err != nil {
		t.Fatalf("Enviar: %v", err)
	}
	if len(res.Enviados) != 5 {
		t.Fatalf("esperava 5 enviados, veio %d", len(res.Enviados))
	}
}

func TestReenviarSobrescreve(t *testing.T) {
	cliente := novoClienteFalso()
	cliente.objetos["170-abc-original.webp"] = []byte("antigo")
	orq := orquestradorTeste(cliente)

	if _, err := orq.Reenviar(context.Background(), "170-abc", variantesTeste("170-abc")); err != nil {
		t.Fatalf("Reenviar: %v", err)
	}
	if string(cliente.objetos["170-abc-original.webp"]) != "dados-original" {
		t.Error("reenvio não sobrescreveu o original")
	}
}

func TestExcluirPorBase(t *testing.T) {
	cliente := novoClienteFalso()
	for _, t2 := range imagem.Todos() {
		cliente.objetos["shoe-42-"+string(t2)+".webp"] = []byte("x")
		cliente.objetos["shoe-420-"+string(t2)+".webp"] = []byte("y")
	}
	orq := orquestradorTeste(cliente)

	removidos, err := orq.ExcluirPorBase(context.Background(), "shoe-42-thumb.webp")
	if err != nil {
		t.Fatalf("ExcluirPorBase: %v", err)
	}
	if len(removidos) != 5 {
		t.Fatalf("esperava 5 removidos, veio %d: %v", len(removidos), removidos)
	}
	for nome := range cliente.objetos {
		if !strings.HasPrefix(nome, "shoe-420-") {
			t.Errorf("objeto %q não deveria ter sobrado", nome)
		}
	}
	if len(cliente.objetos) != 5 {
		t.Errorf("shoe-420 deveria permanecer intacto, sobraram %d objetos", len(cliente.objetos))
	}
}

func TestExcluirPorBaseSemListagem(t *testing.T) {
	cliente := novoClienteFalso()
	cliente.objetos["170-abc-thumb.webp"] = []byte("x")
	cliente.erroListagem = errors.New("listagem indisponível")
	orq := orquestradorTeste(cliente)

	removidos, err := orq.ExcluirPorBase(context.Background(), "170-abc-thumb.webp")
	if err != nil {
		t.Fatalf("ExcluirPorBase: %v", err)
	}
	if len(removidos) != 1 || removidos[0] != "170-abc-thumb.webp" {
		t.Fatalf("fallback literal esperado, veio %v", removidos)
	}
}

func chaves(m map[string][]byte) []string {
	var ks []string
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
