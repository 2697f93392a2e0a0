package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/maildispatch/secret"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAILDISPATCH_"

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(expandedFile{path: path}, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	keys := keyIndex()
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		return envKey(keys, key), value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if port, ok := os.LookupEnv("PORT"); ok && !k.Exists("server.port") {
		if err := k.Set("server.port", port); err != nil {
			return nil, fmt.Errorf("apply PORT: %w", err)
		}
	}

	cfg := Default()
	cfg.Providers = nil
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are named, without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// expandedFile is a koanf provider that reads a file and expands ${VAR}
// references strictly before parsing.
type expandedFile struct {
	path string
}

func (f expandedFile) ReadBytes() ([]byte, error) {
	raw, err := file.Provider(f.path).ReadBytes()
	if err != nil {
		return nil, err
	}
	expanded, err := secret.ExpandEnvStrict(string(raw))
	if err != nil {
		return nil, err
	}
	return []byte(expanded), nil
}

func (f expandedFile) Read() (map[string]any, error) {
	return nil, errors.New("expandedFile does not support Read")
}

// envKey maps MAILDISPATCH_DISPATCH__RATELIMIT__MAXREQUESTS to
// dispatch.rateLimit.maxRequests.
func envKey(keys map[string]string, name string) string {
	path := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, EnvPrefix), "__", "."))
	if canonical, ok := keys[path]; ok {
		return canonical
	}
	return path
}

// keyIndex maps lowercased koanf paths of Config to their canonical case.
func keyIndex() map[string]string {
	index := make(map[string]string)
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			tag := field.Tag.Get("koanf")
			if tag == "" {
				continue
			}
			path := prefix + tag
			index[strings.ToLower(path)] = path
			if field.Type.Kind() == reflect.Struct {
				walk(field.Type, path+".")
			}
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return index
}
