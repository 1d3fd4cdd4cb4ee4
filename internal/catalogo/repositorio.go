package catalogo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProdutoFotos é a projeção tipada dos campos de imagem de um produto.
// Deriva do schema: se o schema mudar, a compilação quebra aqui em vez
// de a varredura passar a ignorar campos em silêncio.
type ProdutoFotos struct {
	ID            int64
	FotoPrincipal *string
	Fotos         []string
}

// BannerImagem é a projeção tipada do campo de imagem de um banner.
type BannerImagem struct {
	ID        int64
	ImagemURL *string
}

// Referencia é um valor bruto de imagem encontrado no catálogo.
type Referencia struct {
	Dono  string // "produto" | "banner"
	ID    int64
	Campo string // "foto_principal" | "fotos" | "imagem_url"
	Valor string
}

// Repositorio lê os campos de imagem do catálogo. Somente leitura: este
// serviço nunca escreve nas tabelas de negócio.
type Repositorio struct {
	pool *pgxpool.Pool
}

// NovoRepositorio cria o repositório sobre o pool informado.
func NovoRepositorio(pool *pgxpool.Pool) *Repositorio {
	return &Repositorio{pool: pool}
}

// ListarReferencias varre todos os campos do catálogo que legalmente
// guardam referência de imagem e devolve os valores brutos.
func (r *Repositorio) ListarReferencias(ctx context.Context) ([]Referencia, error) {
	var referencias []Referencia

	linhas, err := r.pool.Query(ctx, `SELECT id, foto_principal, fotos FROM produtos`)
	if err != nil {
		return nil, fmt.Errorf("catalogo: consulta de produtos: %w", err)
	}
	for linhas.Next() {
		var p ProdutoFotos
		if err := linhas.Scan(&p.ID, &p.FotoPrincipal, &p.Fotos); err != nil {
			linhas.Close()
			return nil, fmt.Errorf("catalogo: scan de produto: %w", err)
		}
		if p.FotoPrincipal != nil && *p.FotoPrincipal != "" {
			referencias = append(referencias, Referencia{Dono: "produto", ID: p.ID, Campo: "foto_principal", Valor: *p.FotoPrincipal})
		}
		for _, foto := range p.Fotos {
			if foto != "" {
				referencias = append(referencias, Referencia{Dono: "produto", ID: p.ID, Campo: "fotos", Valor: foto})
			}
		}
	}
	linhas.Close()
	if err := linhas.Err(); err != nil {
		return nil, fmt.Errorf("catalogo: leitura de produtos: %w", err)
	}

	linhas, err = r.pool.Query(ctx, `SELECT id, imagem_url FROM banners`)
	if err != nil {
		return nil, fmt.Errorf("catalogo: consulta de banners: %w", err)
	}
	defer linhas.Close()
	for linhas.Next() {
		var b BannerImagem
		if err := linhas.Scan(&b.ID, &b.ImagemURL); err != nil {
			return nil, fmt.Errorf("catalogo: scan de banner: %w", err)
		}
		if b.ImagemURL != nil && *b.ImagemURL != "" {
			referencias = append(referencias, Referencia{Dono: "banner", ID: b.ID, Campo: "imagem_url", Valor: *b.ImagemURL})
		}
	}
	if err := linhas.Err(); err != nil {
		return nil, fmt.Errorf("catalogo: leitura de banners: %w", err)
	}

	return referencias, nil
}
