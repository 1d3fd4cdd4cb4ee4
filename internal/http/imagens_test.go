package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vitrineloja/imagens/internal/auth"
	"github.com/vitrineloja/imagens/internal/config"
	"github.com/vitrineloja/imagens/internal/envio"
	"github.com/vitrineloja/imagens/internal/imagem"
)

const segredoTeste = "segredo-de-teste-com-32-caracteres!!"

type enviadorStub struct {
	enviados  []string
	excluidos []string
	erro      error
}

func (e *enviadorStub) Enviar(ctx context.Context, caminho string, variantes []imagem.Variante) (*envio.Resultado, error) {
	if e.erro != nil {
		return nil, e.erro
	}
	var nomes []string
	for _, v := range variantes {
		nomes = append(nomes, v.Nome)
	}
	e.enviados = append(e.enviados, caminho)
	return &envio.Resultado{Caminho: caminho, URL: "https://cdn.teste/" + caminho, Enviados: nomes}, nil
}

func (e *enviadorStub) ExcluirPorBase(ctx context.Context, caminho string) ([]string, error) {
	if e.erro != nil {
		return nil, e.erro
	}
	e.excluidos = append(e.excluidos, caminho)
	return []string{imagem.NomeObjeto(caminho, imagem.TamanhoOriginal)}, nil
}

func servidorTeste(t *testing.T, stub *enviadorStub) http.Handler {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       segredoTeste,
		MaxUploadBytes:  5 << 20,
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
	return NewRouter(cfg, imagem.NovoGerador(imagem.PoliticaPadrao()), stub)
}

func tokenTeste(t *testing.T) string {
	t.Helper()
	manager := auth.NewJWTManager(segredoTeste, time.Minute)
	token, err := manager.GenerateAccessToken("admin-1", []string{"ADMIN"})
	if err != nil {
		t.Fatalf("gerando token: %v", err)
	}
	return token
}

func corpoPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 30, 30))); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestUploadSemToken(t *testing.T) {
	srv := servidorTeste(t, &enviadorStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/imagens", bytes.NewReader(corpoPNG(t)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, esperado 401", rec.Code)
	}
}

func TestUploadSucesso(t *testing.T) {
	stub := &enviadorStub{}
	srv := servidorTeste(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/imagens", bytes.NewReader(corpoPNG(t)))
	req.Header.Set("Authorization", "Bearer "+tokenTeste(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, corpo: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data UploadResposta `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("resposta ilegível: %v", err)
	}
	if envelope.Data.Path == "" || envelope.Data.URL == "" {
		t.Errorf("resposta sem url/path: %+v", envelope.Data)
	}
	if len(envelope.Data.Variantes) != 5 {
		t.Errorf("esperava 5 variantes, veio %d", len(envelope.Data.Variantes))
	}
	if len(stub.enviados) != 1 {
		t.Errorf("orquestrador deveria ter sido chamado 1 vez, veio %d", len(stub.enviados))
	}
}

func TestUploadMimeInvalido(t *testing.T) {
	srv := servidorTeste(t, &enviadorStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/imagens", bytes.NewReader([]byte("texto puro, sem imagem")))
	req.Header.Set("Authorization", "Bearer "+tokenTeste(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status %d, esperado 415", rec.Code)
	}
}

func TestUploadFalhaDeStorage(t *testing.T) {
	stub := &enviadorStub{erro: errors.New("bucket fora do ar")}
	srv := servidorTeste(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/imagens", bytes.NewReader(corpoPNG(t)))
	req.Header.Set("Authorization", "Bearer "+tokenTeste(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, esperado 502", rec.Code)
	}
}

func TestExcluir(t *testing.T) {
	stub := &enviadorStub{}
	srv := servidorTeste(t, stub)

	req := httptest.NewRequest(http.MethodDelete, "/v1/imagens?path=170-abc-thumb.webp", nil)
	req.Header.Set("Authorization", "Bearer "+tokenTeste(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, corpo: %s", rec.Code, rec.Body.String())
	}
	if len(stub.excluidos) != 1 || stub.excluidos[0] != "170-abc-thumb.webp" {
		t.Errorf("exclusão não repassada: %v", stub.excluidos)
	}
}

func TestExcluirSemPath(t *testing.T) {
	srv := servidorTeste(t, &enviadorStub{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/imagens", nil)
	req.Header.Set("Authorization", "Bearer "+tokenTeste(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, esperado 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := servidorTeste(t, &enviadorStub{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, esperado 200", rec.Code)
	}
}
