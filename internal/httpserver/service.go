package httpserver

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"oid4vci-issuer/internal/issuance"
	"oid4vci-issuer/pkg/helpers"
	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/model"
	"oid4vci-issuer/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Service exposes the issuance Client's request-scoped operations over
// HTTP: offer creation, offer retrieval, and credential delivery.
type Service struct {
	config *model.Cfg
	logger *logger.Log
	tracer *trace.Tracer
	client *issuance.Client
	gin    *gin.Engine
	server *http.Server
}

// New wires a gin engine in front of client and starts listening on
// config.Issuer.APIServer.Addr.
func New(ctx context.Context, config *model.Cfg, client *issuance.Client, tracer *trace.Tracer, log *logger.Log) (*Service, error) {
	s := &Service{
		config: config,
		logger: log,
		tracer: tracer,
		client: client,
		server: &http.Server{Addr: config.Issuer.APIServer.Addr},
	}

	switch s.config.Common.Production {
	case true:
		gin.SetMode(gin.ReleaseMode)
	case false:
		gin.SetMode(gin.DebugMode)
	}

	apiValidator := validator.New()
	apiValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	binding.Validator = &defaultValidator{Validate: apiValidator}

	s.gin = gin.New()
	s.server.Handler = s.gin
	s.server.ReadTimeout = 5 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.IdleTimeout = 90 * time.Second

	s.gin.Use(s.middlewareTraceID(ctx))
	s.gin.Use(s.middlewareLogger(ctx))
	s.gin.Use(s.middlewareCrash(ctx))
	s.gin.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, helpers.NewError("not_found")) })

	rgRoot := s.gin.Group("/")
	rgRoot.GET("/health", s.endpointHealth)

	rgIssuer := rgRoot.Group("/issuer/:issuer_id")
	rgIssuer.POST("/credential-offer", s.endpointCreateOffer)
	rgIssuer.GET("/credential-offer/:credential_offer_uuid", s.endpointGetCredentialOffer)
	rgIssuer.POST("/credential", s.endpointCredential)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.New("http").Trace("listen_error", "error", err)
		}
	}()

	s.logger.Info("started", "addr", config.Issuer.APIServer.Addr)

	return s, nil
}

// Close shuts down the HTTP server.
func (s *Service) Close(ctx context.Context) error {
	s.logger.Info("closing httpserver")
	return s.server.Shutdown(ctx)
}

// defaultValidator plugs the package-wide validator instance into gin's
// binding package the same way the rest of this codebase configures
// go-playground/validator, so JSON field names rather than Go struct field
// names show up in binding error messages.
type defaultValidator struct {
	Validate *validator.Validate
}

func (v *defaultValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	return v.Validate.Struct(obj)
}

func (v *defaultValidator) Engine() any {
	return v.Validate
}
