package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,254}$`)

// tagRequiredFor marks fields a struct-level rule found missing for the
// selected provider.
const tagRequiredFor = "required_for"

// newValidator returns a validator that reports fields by their koanf path
// and knows the provider-dependent rules.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("collection_name", func(fl validator.FieldLevel) bool {
		return collectionNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	v.RegisterStructValidation(vectorDBRules, VectorDBConfig{})
	v.RegisterStructValidation(embedderRules, EmbedderConfig{})
	v.RegisterStructValidation(llmRules, LLMConfig{})
	return v, nil
}

func vectorDBRules(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(VectorDBConfig)
	switch cfg.Provider {
	case "qdrant", "pgvector", "redis":
		if strings.TrimSpace(cfg.URL) == "" {
			sl.ReportError(cfg.URL, "url", "URL", tagRequiredFor, cfg.Provider)
		}
	case "filesystem":
		if strings.TrimSpace(cfg.Path) == "" {
			sl.ReportError(cfg.Path, "path", "Path", tagRequiredFor, cfg.Provider)
		}
	}
}

func embedderRules(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(EmbedderConfig)
	if cfg.Provider == "openai" && cfg.APIKey == "" {
		sl.ReportError(cfg.APIKey, "api_key", "APIKey", tagRequiredFor, cfg.Provider)
	}
}

func llmRules(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(LLMConfig)
	if cfg.Provider == "openai" && cfg.APIKey == "" {
		sl.ReportError(cfg.APIKey, "api_key", "APIKey", tagRequiredFor, cfg.Provider)
	}
}

// describeValidation rewrites validator errors as "<path> <problem>" lines
// joined with "; ". Other errors pass through.
func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeField(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case tagRequiredFor:
		return fmt.Sprintf("%s is required for provider %s", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", path, fe.Param())
	case "ltfield":
		sibling := strings.ToLower(fe.Param())
		if i := strings.LastIndex(path, "."); i >= 0 {
			sibling = path[:i+1] + sibling
		}
		return fmt.Sprintf("%s must be less than %s", path, sibling)
	case "collection_name":
		return fmt.Sprintf("%s %q may only contain letters, digits, '_' and '-'", path, fmt.Sprint(fe.Value()))
	case "startswith":
		return fmt.Sprintf("%s must start with %q", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", path, fe.Tag())
	}
}
