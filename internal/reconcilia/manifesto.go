package reconcilia

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ItemManifesto identifica um objeto candidato à exclusão.
type ItemManifesto struct {
	Nome  string `json:"nome"`
	Bytes int64  `json:"bytes"`
}

// Manifesto é o registro write-ahead de uma execução do reconciliador.
// É gravado em disco antes de qualquer exclusão: se o processo morrer no
// meio, o manifesto diz exatamente o que estava em jogo.
type Manifesto struct {
	Execucao string          `json:"execucao"`
	GeradoEm time.Time       `json:"gerado_em"`
	DryRun   bool            `json:"dry_run"`
	Total    int             `json:"total"`
	Objetos  []ItemManifesto `json:"objetos"`
}

func escreverManifesto(dir string, m Manifesto) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("reconcilia: criando diretório do manifesto: %w", err)
	}

	nome := fmt.Sprintf("manifesto-gc-%s-%s.json", m.GeradoEm.UTC().Format("20060102T150405Z"), m.Execucao)
	caminho := filepath.Join(dir, nome)

	dados, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("reconcilia: serializando manifesto: %w", err)
	}

	arquivo, err := os.OpenFile(caminho, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("reconcilia: criando manifesto: %w", err)
	}
	defer arquivo.Close()

	if _, err := arquivo.Write(dados); err != nil {
		return "", fmt.Errorf("reconcilia: gravando manifesto: %w", err)
	}
	// Garante o manifesto em disco antes de qualquer DELETE sair.
	if err := arquivo.Sync(); err != nil {
		return "", fmt.Errorf("reconcilia: sincronizando manifesto: %w", err)
	}
	return caminho, nil
}
