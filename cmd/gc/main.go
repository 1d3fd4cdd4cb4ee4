package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vitrineloja/imagens/internal/catalogo"
	"github.com/vitrineloja/imagens/internal/config"
	"github.com/vitrineloja/imagens/internal/db"
	"github.com/vitrineloja/imagens/internal/reconcilia"
	"github.com/vitrineloja/imagens/internal/storage"
)

func main() {
	aplicar := flag.Bool("aplicar", false, "executa as exclusões (sem esta flag o job é dry-run)")
	limite := flag.Int("limit", 0, "máximo de órfãos tratados nesta execução (0 = todos)")
	lote := flag.Int("lote", 50, "objetos por lote de exclusão")
	pausa := flag.Duration("pausa", 500*time.Millisecond, "intervalo mínimo entre lotes")
	manifesto := flag.String("manifesto", "manifestos", "diretório onde gravar o manifesto write-ahead")
	flag.Parse()

	if err := run(*aplicar, *limite, *lote, *pausa, *manifesto); err != nil {
		log.Error().Err(err).Msg("gc encerrado com erro")
		os.Exit(1)
	}
}

func run(aplicar bool, limite, lote int, pausa time.Duration, dirManifesto string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	cliente, err := storage.NovoClienteS3(storage.Config{
		Endpoint:     cfg.Storage.Endpoint,
		Region:       cfg.Storage.Region,
		Bucket:       cfg.Storage.Bucket,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		PublicDomain: cfg.Storage.PublicDomain,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Trava distribuída: duas reconciliações simultâneas excluiriam
	// sobre snapshots divergentes.
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		trava, err := reconcilia.AdquirirTrava(ctx, redisClient, 30*time.Minute)
		if err != nil {
			if errors.Is(err, reconcilia.ErrTravaOcupada) {
				return err
			}
			return fmt.Errorf("redis: %w", err)
		}
		defer func() {
			if err := trava.Liberar(context.Background()); err != nil {
				log.Warn().Err(err).Msg("não foi possível liberar a trava")
			}
		}()
	}

	repo := catalogo.NovoRepositorio(pool)
	indexador := catalogo.NovoIndexador(repo, cfg.DominioPublico())
	reconciliador := reconcilia.NovoReconciliador(cliente, indexador, dirManifesto, lote, pausa)

	relatorio, err := reconciliador.Executar(ctx, reconcilia.Opcoes{Aplicar: aplicar, Limite: limite})
	if err != nil {
		return err
	}

	fmt.Println("=== reconciliação de imagens ===")
	fmt.Printf("execução:       %s\n", relatorio.Execucao)
	fmt.Printf("modo:           %s\n", modo(relatorio.DryRun))
	fmt.Printf("objetos:        %d\n", relatorio.TotalStorage)
	fmt.Printf("referenciados:  %d\n", relatorio.TotalReferenciado)
	fmt.Printf("órfãos:         %d\n", relatorio.Orfaos)
	fmt.Printf("removidos:      %d\n", len(relatorio.Removidos))
	fmt.Printf("falhas:         %d\n", len(relatorio.Falhas))
	fmt.Printf("bytes liberados: %d\n", relatorio.BytesLiberados)
	fmt.Printf("manifesto:      %s\n", relatorio.ArquivoManifesto)

	if len(relatorio.Falhas) > 0 {
		return fmt.Errorf("gc: %d objetos não puderam ser removidos", len(relatorio.Falhas))
	}
	return nil
}

func modo(dryRun bool) string {
	if dryRun {
		return "dry-run (use -aplicar para excluir)"
	}
	return "exclusão"
}
