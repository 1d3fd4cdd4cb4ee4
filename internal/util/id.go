package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NovoID gera um identificador opaco para execuções e travas.
func NovoID() string {
	return uuid.NewString()
}

// NovoCaminhoImagem gera o caminho canônico de uma imagem nova:
// epoch em milissegundos mais um sufixo aleatório. O sufixo torna
// colisões astronomicamente improváveis e garante que um caminho nunca
// é prefixo de outro (o separador "-" delimita o casamento por base).
func NovoCaminhoImagem() string {
	sufixo := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sufixo)
}
