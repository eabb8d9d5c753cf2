package domain

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxPoolSize é o número máximo de credenciais consideradas no rodízio.
const MaxPoolSize = 5

// Credential é uma chave de API do upstream.
//
// ID é derivado da chave (xxhash) e pode ir para logs/métricas; Secret nunca.
type Credential struct {
	Secret string
	ID     string
}

func NewCredential(secret string) Credential {
	return Credential{
		Secret: secret,
		ID:     fmt.Sprintf("key-%08x", uint32(xxhash.Sum64String(secret))),
	}
}

// String nunca expõe o segredo.
func (c Credential) String() string { return c.ID }

// Masked mostra só o final da chave, para o comando `keys`.
func (c Credential) Masked() string {
	if len(c.Secret) <= 4 {
		return strings.Repeat("*", len(c.Secret))
	}
	return strings.Repeat("*", len(c.Secret)-4) + c.Secret[len(c.Secret)-4:]
}

// Pool é a lista ordenada de credenciais; a ordem define o rodízio.
type Pool []Credential

// ParsePool monta o pool a partir da lista separada por vírgulas (plural) ou,
// se ela estiver vazia, da chave singular. Entradas vazias são descartadas e o
// pool é cortado em MaxPoolSize. Duplicatas são mantidas.
func ParsePool(list, single string) Pool {
	var pool Pool
	for _, raw := range strings.Split(list, ",") {
		if k := strings.TrimSpace(raw); k != "" {
			pool = append(pool, NewCredential(k))
		}
		if len(pool) == MaxPoolSize {
			break
		}
	}
	if len(pool) == 0 {
		if k := strings.TrimSpace(single); k != "" {
			pool = Pool{NewCredential(k)}
		}
	}
	return pool
}

// Settings é a configuração lida a cada requisição lógica.
type Settings struct {
	Pool  Pool
	Model string
}

// SettingsSource entrega as Settings atuais. Implementações podem ler o
// ambiente a cada chamada, de modo que uma troca de chaves vale na próxima requisição.
type SettingsSource interface {
	Settings() Settings
}
