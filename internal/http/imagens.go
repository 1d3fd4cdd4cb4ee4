package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/util"
)

// VarianteResposta descreve uma variante gravada no upload.
type VarianteResposta struct {
	Tamanho string `json:"tamanho"`
	Nome    string `json:"nome"`
	Largura int    `json:"largura"`
	Altura  int    `json:"altura"`
}

// UploadResposta é o contrato devolvido ao painel.
type UploadResposta struct {
	URL       string             `json:"url"`
	Path      string             `json:"path"`
	Variantes []VarianteResposta `json:"variants"`
}

// handleUpload recebe uma imagem, deriva todas as variantes e grava no
// bucket. O caminho canônico (sem sufixo) só é devolvido quando o
// conjunto completo foi gravado.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	dados, err := lerImagem(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "VALIDATION", "arquivo excede o tamanho máximo", nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", "não foi possível ler o arquivo", nil)
		return
	}
	if len(dados) == 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo vazio", nil)
		return
	}

	// Mime farejado dos bytes; o Content-Type do cliente não conta.
	mime := http.DetectContentType(dados)
	if !strings.HasPrefix(mime, "image/") {
		WriteError(w, http.StatusUnsupportedMediaType, "VALIDATION", "apenas imagens são aceitas", map[string]string{"mime": mime})
		return
	}

	caminho := util.NovoCaminhoImagem()

	variantes, err := h.gerador.Gerar(caminho, dados, nil)
	if err != nil {
		if errors.Is(err, imagem.ErrFormato) || errors.Is(err, imagem.ErrDimensoes) {
			WriteError(w, http.StatusUnprocessableEntity, "GENERATION", "imagem corrompida ou ilegível", nil)
			return
		}
		log.Error().Err(err).Str("caminho", caminho).Msg("geração de variantes falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "falha ao processar a imagem", nil)
		return
	}

	resultado, err := h.envio.Enviar(r.Context(), caminho, variantes)
	if err != nil {
		log.Error().Err(err).Str("caminho", caminho).Msg("envio de variantes falhou")
		WriteError(w, http.StatusBadGateway, "STORAGE", "não foi possível gravar a imagem", nil)
		return
	}

	resposta := UploadResposta{URL: resultado.URL, Path: resultado.Caminho}
	for _, v := range variantes {
		resposta.Variantes = append(resposta.Variantes, VarianteResposta{
			Tamanho: string(v.Tamanho),
			Nome:    v.Nome,
			Largura: v.Largura,
			Altura:  v.Altura,
		})
	}

	log.Info().
		Str("caminho", resultado.Caminho).
		Int("variantes", len(variantes)).
		Str("usuario", getSubject(r)).
		Msg("imagem publicada")

	WriteJSON(w, http.StatusCreated, resposta)
}

// handleExcluir remove todas as variantes que compartilham o caminho
// base informado.
func (h *Handler) handleExcluir(w http.ResponseWriter, r *http.Request) {
	caminho := strings.TrimSpace(r.URL.Query().Get("path"))
	if caminho == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "parâmetro path obrigatório", nil)
		return
	}

	removidos, err := h.envio.ExcluirPorBase(r.Context(), caminho)
	if err != nil {
		log.Error().Err(err).Str("path", caminho).Msg("exclusão falhou")
		WriteError(w, http.StatusBadGateway, "STORAGE", "não foi possível remover a imagem", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"removidos": removidos})
}

// lerImagem aceita multipart (campo "arquivo" ou "file") ou corpo cru.
func lerImagem(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		for _, campo := range []string{"arquivo", "file"} {
			arquivo, _, err := r.FormFile(campo)
			if err != nil {
				continue
			}
			defer arquivo.Close()
			return io.ReadAll(arquivo)
		}
		return nil, errors.New("campo de arquivo ausente")
	}
	return io.ReadAll(r.Body)
}
