package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vitrineloja/imagens/internal/auth"
	"github.com/vitrineloja/imagens/internal/config"
	"github.com/vitrineloja/imagens/internal/envio"
	httpmiddleware "github.com/vitrineloja/imagens/internal/http/middleware"
	"github.com/vitrineloja/imagens/internal/imagem"
)

// Enviador é a fatia do orquestrador usada pelos handlers.
type Enviador interface {
	Enviar(ctx context.Context, caminho string, variantes []imagem.Variante) (*envio.Resultado, error)
	ExcluirPorBase(ctx context.Context, caminho string) ([]string, error)
}

// Handler concentra as dependências das rotas de imagem.
type Handler struct {
	cfg            *config.Config
	gerador        *imagem.Gerador
	envio          Enviador
	maxUploadBytes int64
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, gerador *imagem.Gerador, enviador Enviador) http.Handler {
	handler := &Handler{
		cfg:            cfg,
		gerador:        gerador,
		envio:          enviador,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0)
	publicLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst)
	authLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))
	r.Use(httpmiddleware.Logging)

	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.IPRateLimit(publicLimiter))
		r.Get("/healthz", handler.handleHealthz)
	})

	r.Route("/v1/imagens", func(r chi.Router) {
		r.Use(httpmiddleware.Auth(jwtManager))
		r.Use(httpmiddleware.UserRateLimit(authLimiter))
		r.Post("/", handler.handleUpload)
		r.Delete("/", handler.handleExcluir)
	})

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func getSubject(r *http.Request) string {
	return httpmiddleware.GetSubject(r.Context())
}
