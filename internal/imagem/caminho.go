package imagem

import (
	"strings"
)

// extensaoConhecida cobre os formatos aceitos no upload e os legados
// encontrados no bucket antes da padronização em WebP.
var extensoesConhecidas = []string{".webp", ".jpeg", ".jpg", ".png", ".gif", ".bmp", ".tiff", ".tif"}

// NomeObjeto monta o nome físico de uma variante a partir do caminho
// canônico. Remove extensão e sufixo de tamanho pré-existentes antes de
// anexar, então aceita tanto caminhos canônicos quanto nomes já derivados.
func NomeObjeto(caminho string, tamanho Tamanho) string {
	return CaminhoBase(caminho) + "-" + string(tamanho) + ".webp"
}

// CaminhoBase reduz um nome de objeto ou URL ao caminho canônico, sem
// extensão e sem sufixo de tamanho. Aplicar duas vezes não muda o
// resultado. Nunca faz I/O.
func CaminhoBase(nomeOuURL string) string {
	s := strings.TrimSpace(nomeOuURL)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	s = removerExtensao(s)

	for {
		semSufixo := removerSufixo(s)
		if semSufixo == s {
			return s
		}
		s = semSufixo
	}
}

func removerExtensao(s string) string {
	minusculo := strings.ToLower(s)
	for _, ext := range extensoesConhecidas {
		if strings.HasSuffix(minusculo, ext) {
			return s[:len(s)-len(ext)]
		}
	}
	return s
}

func removerSufixo(s string) string {
	for _, t := range Todos() {
		sufixo := "-" + string(t)
		if strings.HasSuffix(s, sufixo) {
			return s[:len(s)-len(sufixo)]
		}
	}
	return s
}

// TemSufixo informa se o nome (com ou sem extensão) já carrega um sufixo
// de tamanho reconhecido, ou seja, já passou pelo pipeline.
func TemSufixo(nome string) bool {
	s := nome
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = removerExtensao(strings.TrimSpace(s))
	return removerSufixo(s) != s
}
