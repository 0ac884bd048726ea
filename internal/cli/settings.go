package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/model"
)

// envAliases maps config keys to the environment names deployments of the
// bot already use. VERIFACT_* names take precedence.
var envAliases = map[string][]string{
	"engine.match_threshold":      {"SIMILARITY_THRESHOLD"},
	"engine.return_threshold":     {"GEMINI_CONFIDENCE_THRESHOLD", "AI_CONFIDENCE_THRESHOLD"},
	"engine.learn_threshold":      {"GEMINI_LEARNING_THRESHOLD", "AI_LEARNING_THRESHOLD"},
	"engine.image_match_distance": {"IMAGE_SIMILARITY_THRESHOLD"},
	"store.dsn":                   {"DATABASE_URL"},
	"lock.redis_addr":             {"REDIS_ADDR"},
}

// providerKeyEnv names the conventional API key variable per provider
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
}

// configureViper registers defaults, VERIFACT_* env lookup and aliases
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("VERIFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, "", reflect.ValueOf(*model.DefaultConfig()))

	for key, aliases := range envAliases {
		names := append([]string{"VERIFACT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// setDefaults walks the config struct and registers every leaf under its
// mapstructure key, so AutomaticEnv can resolve nested keys on Unmarshal
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// loadConfig resolves the effective configuration from v
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Engine.ImageChannelMode = strings.ToLower(cfg.Engine.ImageChannelMode)
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.Lock.Backend = strings.ToLower(cfg.Lock.Backend)

	provider := strings.ToLower(cfg.AI.Provider)
	if cfg.AI.APIKey == "" {
		if name, ok := providerKeyEnv[provider]; ok {
			cfg.AI.APIKey = os.Getenv(name)
		}
	}
	if provider == "ollama" && cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if strings.EqualFold(cfg.Embedding.Provider, "openai") && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logging.Configure(cfg.Logging)
	return cfg, nil
}
