package reconcilia

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vitrineloja/imagens/internal/util"
)

const chaveTrava = "imagens:gc:trava"

// ErrTravaOcupada indica outra reconciliação em andamento.
var ErrTravaOcupada = errors.New("reconcilia: outra execução em andamento")

// Trava é um lock simples via SETNX para impedir dois reconciliadores
// concorrentes, que fariam exclusões sobre snapshots divergentes.
type Trava struct {
	rdb   *redis.Client
	valor string
}

// AdquirirTrava tenta obter a trava com o TTL informado.
func AdquirirTrava(ctx context.Context, rdb *redis.Client, ttl time.Duration) (*Trava, error) {
	valor := util.NovoID()
	ok, err := rdb.SetNX(ctx, chaveTrava, valor, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTravaOcupada
	}
	return &Trava{rdb: rdb, valor: valor}, nil
}

// Liberar solta a trava se ela ainda for nossa.
func (t *Trava) Liberar(ctx context.Context) error {
	atual, err := t.rdb.Get(ctx, chaveTrava).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if atual != t.valor {
		return nil
	}
	return t.rdb.Del(ctx, chaveTrava).Err()
}
