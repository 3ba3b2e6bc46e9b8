package handlers

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"typstapi/internal/compiler"
	"typstapi/internal/pkg/logger"
)

// VersionProber reports the version of the installed compiler.
type VersionProber interface {
	Version(ctx context.Context) (string, error)
}

type Deps struct {
	Compiler compiler.Compiler
	// Prober is optional; deep health checks skip the compiler without it.
	Prober VersionProber
	// RDB is optional; set when rate limiting shares state through redis.
	RDB     *redis.Client
	Log     *logger.Logger
	Version string
}

type Handler struct {
	compiler compiler.Compiler
	prober   VersionProber
	rdb      *redis.Client
	log      *logger.Logger
	version  string
	validate *validator.Validate
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		compiler: d.Compiler,
		prober:   d.Prober,
		rdb:      d.RDB,
		log:      log,
		version:  d.Version,
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
