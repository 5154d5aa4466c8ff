package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required environment variable is not set and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

//nolint:gochecknoglobals
var (
	envConfigType = reflect.TypeOf(EnvConfig{}) //nolint:exhaustruct
	durationType  = reflect.TypeOf(time.Duration(0))
)

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
}

// Namespace returns the namespace the config was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

func getEnvConfig(cfg any) (*EnvConfig, error) {
	ptr := reflect.ValueOf(cfg)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	val := ptr.Elem()

	for i := range val.NumField() {
		field := val.Type().Field(i)
		if !field.Anonymous || field.Type != envConfigType {
			continue
		}

		//nolint:forcetypeassert
		return val.Field(i).Addr().Interface().(*EnvConfig), nil
	}

	return nil, ErrInvalidConfig
}

// Parse loads configuration values from environment variables into the provided struct.
// The struct must embed EnvConfig and use `env` tags to name its variables.
// Every variable is looked up under the namespace first, then under each shorter
// namespace prefix, so STOREFRONT_CART_X falls back to STOREFRONT_X and X.
// Nested structs add their `envPrefix` tag to the variable names of their fields.
// Supported field types are string, bool, ints, floats and time.Duration.
func Parse(_ context.Context, cfg any, namespace string) error {
	envConfig, err := getEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	envConfig.namespace = namespace

	return parseStruct(namespace, "", reflect.ValueOf(cfg).Elem())
}

func parseStruct(namespace, prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := parseStruct(namespace, prefix+field.Tag.Get("envPrefix"), val.Field(i)); err != nil {
				return err
			}

			continue
		}

		envTag, ok := field.Tag.Lookup("env")
		if !ok || envTag == "" {
			continue
		}

		raw, found := lookup(namespace, prefix+envTag)
		if !found {
			defaultValue, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				return fmt.Errorf("parse field: %w: %s", ErrVarNotSet, prefix+envTag)
			}

			raw = defaultValue
		}

		if err := setValue(val.Field(i), raw); err != nil {
			return fmt.Errorf("parse field %s: %w", prefix+envTag, err)
		}
	}

	return nil
}

// lookup tries the most specific namespace first.
func lookup(namespace, name string) (string, bool) {
	parts := strings.Split(namespace, "_")

	for i := len(parts); i >= 0; i-- {
		key := name
		if ns := strings.Join(parts[:i], "_"); ns != "" {
			key = ns + "_" + name
		}

		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
	}

	return "", false
}

//nolint:cyclop
func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		field.SetInt(int64(d))

		return nil
	}

	//nolint:exhaustive
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int: %w", err)
		}

		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}

		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}

		field.SetBool(b)
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVarType, field.Kind())
	}

	return nil
}
