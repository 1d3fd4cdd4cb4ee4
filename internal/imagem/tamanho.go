package imagem

// Tamanho identifica uma classe de tamanho derivada da imagem original.
// O valor é gravado no nome do objeto, por isso nunca muda.
type Tamanho string

const (
	TamanhoThumb    Tamanho = "thumb"
	TamanhoSmall    Tamanho = "small"
	TamanhoMedium   Tamanho = "medium"
	TamanhoLarge    Tamanho = "large"
	TamanhoOriginal Tamanho = "original"
)

// Todos devolve as classes na ordem de geração.
func Todos() []Tamanho {
	return []Tamanho{TamanhoThumb, TamanhoSmall, TamanhoMedium, TamanhoLarge, TamanhoOriginal}
}

// Valido informa se a classe é conhecida.
func (t Tamanho) Valido() bool {
	switch t {
	case TamanhoThumb, TamanhoSmall, TamanhoMedium, TamanhoLarge, TamanhoOriginal:
		return true
	}
	return false
}

// Politica define largura alvo e qualidade de reencode por classe.
// É carregada uma vez e nunca alterada; leitura concorrente é segura.
type Politica struct {
	larguras   map[Tamanho]int
	qualidades map[Tamanho]int
}

// NovaPolitica monta uma política a partir das tabelas informadas.
// A classe original nunca tem largura alvo (0 = dimensões nativas).
func NovaPolitica(larguras, qualidades map[Tamanho]int) Politica {
	l := make(map[Tamanho]int, len(larguras))
	for t, v := range larguras {
		l[t] = v
	}
	q := make(map[Tamanho]int, len(qualidades))
	for t, v := range qualidades {
		q[t] = v
	}
	return Politica{larguras: l, qualidades: q}
}

// PoliticaPadrao devolve a tabela usada em produção.
func PoliticaPadrao() Politica {
	return NovaPolitica(
		map[Tamanho]int{
			TamanhoThumb:  112,
			TamanhoSmall:  400,
			TamanhoMedium: 800,
			TamanhoLarge:  1200,
		},
		map[Tamanho]int{
			TamanhoThumb:    70,
			TamanhoSmall:    75,
			TamanhoMedium:   80,
			TamanhoLarge:    85,
			TamanhoOriginal: 90,
		},
	)
}

// Largura devolve a largura alvo da classe (0 para original).
func (p Politica) Largura(t Tamanho) int {
	return p.larguras[t]
}

// Qualidade devolve a qualidade de reencode da classe.
func (p Politica) Qualidade(t Tamanho) int {
	if q, ok := p.qualidades[t]; ok {
		return q
	}
	return 90
}
