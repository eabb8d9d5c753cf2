package infra

import (
	"strings"

	"genai-gateway/dispatch/domain"

	"github.com/spf13/viper"
)

const (
	EnvAPIKeys = "GENERATIVE_API_KEYS"
	EnvAPIKey  = "GENERATIVE_API_KEY"
	EnvModel   = "GENERATIVE_MODEL"

	DefaultModel = "gemini-1.5-flash"
)

// EnvSettings lê chaves e modelo do viper a cada requisição lógica.
// Com AutomaticEnv, uma mudança no ambiente vale já na próxima chamada.
type EnvSettings struct {
	V *viper.Viper
}

func NewEnvSettings(v *viper.Viper) EnvSettings {
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}
	return EnvSettings{V: v}
}

func (s EnvSettings) Settings() domain.Settings {
	model := strings.TrimSpace(s.V.GetString(EnvModel))
	if model == "" {
		model = DefaultModel
	}
	return domain.Settings{
		Pool:  domain.ParsePool(s.V.GetString(EnvAPIKeys), s.V.GetString(EnvAPIKey)),
		Model: model,
	}
}
