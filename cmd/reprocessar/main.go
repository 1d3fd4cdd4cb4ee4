package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vitrineloja/imagens/internal/catalogo"
	"github.com/vitrineloja/imagens/internal/config"
	"github.com/vitrineloja/imagens/internal/db"
	"github.com/vitrineloja/imagens/internal/envio"
	"github.com/vitrineloja/imagens/internal/imagem"
	"github.com/vitrineloja/imagens/internal/reprocessa"
	"github.com/vitrineloja/imagens/internal/storage"
)

func main() {
	executar := flag.Bool("executar", false, "grava os reparos (sem esta flag o job é dry-run)")
	limite := flag.Int("limit", 0, "máximo de imagens reparadas nesta execução (0 = todas)")
	pausa := flag.Duration("pausa", 300*time.Millisecond, "intervalo mínimo entre imagens")
	flag.Parse()

	if err := run(*executar, *limite, *pausa); err != nil {
		log.Error().Err(err).Msg("reprocessamento encerrado com erro")
		os.Exit(1)
	}
}

func run(executar bool, limite int, pausa time.Duration) error {
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

	repo := catalogo.NovoRepositorio(pool)
	gerador := imagem.NovoGerador(imagem.PoliticaPadrao())
	orquestrador := envio.NovoOrquestrador(cliente)
	motor := reprocessa.NovoMotor(repo, cliente, gerador, orquestrador, cfg.DominioPublico(), pausa)

	resumo, err := motor.Executar(ctx, reprocessa.Opcoes{Executar: executar, Limite: limite})
	if err != nil {
		return err
	}

	fmt.Println("=== reprocessamento de imagens ===")
	fmt.Printf("modo:        %s\n", modo(resumo.DryRun))
	fmt.Printf("candidatos:  %d\n", len(resumo.Candidatos))
	fmt.Printf("processados: %d\n", resumo.Processados)
	fmt.Printf("pulados:     %d\n", resumo.Pulados)
	fmt.Printf("falhas:      %d\n", len(resumo.Falhas))
	for _, falha := range resumo.Falhas {
		fmt.Printf("  - %s: %s\n", falha.Caminho, falha.Erro)
	}
	if resumo.DryRun {
		for _, caminho := range resumo.Candidatos {
			fmt.Printf("  reparar: %s\n", caminho)
		}
	}

	if len(resumo.Falhas) > 0 {
		return fmt.Errorf("reprocessa: %d imagens não puderam ser reparadas", len(resumo.Falhas))
	}
	return nil
}

func modo(dryRun bool) string {
	if dryRun {
		return "dry-run (use -executar para gravar)"
	}
	return "reparo"
}
