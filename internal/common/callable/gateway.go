package callable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/metrics"
	"crm-functions/internal/common/observability"
	"crm-functions/internal/common/salesforce"
)

const (
	HeaderRequestID        = "X-Request-ID"
	HeaderCRMAuthorization = "X-CRM-Authorization"
	HeaderCRMInstanceURL   = "X-CRM-Instance-URL"
)

// TokenVerifier validates caller ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Caller, error)
}

type Options struct {
	Config        *config.Config
	Verifier      TokenVerifier
	Roles         auth.RoleResolver
	Observability *observability.Observability
	Logger        logger.Logger
}

// Gateway routes POST /functions/{name} to registered functions.
type Gateway struct {
	cfg           *config.Config
	verifier      TokenVerifier
	roles         auth.RoleResolver
	obs           *observability.Observability
	logger        logger.Logger
	errors        *errs.ErrorHandler
	admins        map[string]bool
	instanceHosts []string
	functions     map[string]Function
	engine        *gin.Engine
}

var defaultInstanceHosts = []string{"my.salesforce.com"}

func NewGateway(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}

	g := &Gateway{
		cfg:       opts.Config,
		verifier:  opts.Verifier,
		roles:     opts.Roles,
		obs:       opts.Observability,
		logger:    opts.Logger,
		errors:    errs.NewErrorHandler(opts.Logger),
		admins:    make(map[string]bool),
		functions: make(map[string]Function),
	}
	for _, uid := range opts.Config.Auth.AdminUIDs {
		g.admins[uid] = true
	}
	g.instanceHosts = opts.Config.CRM.InstanceHosts
	if len(g.instanceHosts) == 0 {
		g.instanceHosts = defaultInstanceHosts
	}

	engine := gin.New()
	engine.Use(requestID(), g.recovery(), g.accessLog())
	if max := opts.Config.Server.MaxBodyBytes; max > 0 {
		engine.Use(bodyLimit(max))
	}
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/functions", g.list)
	engine.POST("/functions/:name", g.invoke)
	g.engine = engine
	return g
}

// Register adds functions. Names must be unique.
func (g *Gateway) Register(fns ...Function) error {
	for _, fn := range fns {
		name := fn.Descriptor().Name
		if name == "" {
			return fmt.Errorf("function without a name: %T", fn)
		}
		if _, dup := g.functions[name]; dup {
			return fmt.Errorf("function %s registered twice", name)
		}
		g.functions[name] = fn
	}
	return nil
}

// Descriptors lists registered functions sorted by name.
func (g *Gateway) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(g.functions))
	for _, fn := range g.functions {
		out = append(out, fn.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (g *Gateway) Handler() http.Handler {
	return g.engine
}

func (g *Gateway) list(c *gin.Context) {
	type entry struct {
		Descriptor
		Enabled bool `json:"enabled"`
	}
	out := []entry{}
	for _, d := range g.Descriptors() {
		out = append(out, entry{Descriptor: d, Enabled: config.IsFunctionEnabled(g.cfg, d.Name)})
	}
	c.JSON(http.StatusOK, gin.H{"functions": out})
}

// ==========================
// Invocation
// ==========================

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (g *Gateway) invoke(c *gin.Context) {
	name := c.Param("name")
	start := time.Now()

	fn, ok := g.functions[name]
	if !ok {
		g.fail(c, name, errs.NewNotFoundError("function", name))
		return
	}
	desc := fn.Descriptor()

	metrics.FunctionsActive.WithLabelValues(name).Inc()
	defer metrics.FunctionsActive.WithLabelValues(name).Dec()

	result, err := g.call(c, fn, desc)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FunctionInvocations.WithLabelValues(name, status).Inc()
	metrics.FunctionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if g.obs != nil {
		g.obs.RecordInvocation(c.Request.Context(), name, status)
		g.obs.RecordDuration(c.Request.Context(), name, time.Since(start), status)
	}

	if err != nil {
		g.fail(c, name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (g *Gateway) call(c *gin.Context, fn Function, desc Descriptor) (interface{}, error) {
	fnCfg := config.GetFunctionConfig(g.cfg, desc.Name)
	if !fnCfg.Enabled {
		return nil, errs.NewFunctionDisabledError(desc.Name)
	}

	data, err := readEnvelope(c.Request.Body)
	if err != nil {
		return nil, err
	}

	caller, err := g.authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireRole(caller, desc.Roles...); err != nil {
		return nil, err
	}

	if schema := fn.Schema(); schema != nil {
		res, err := schema.Validate(data)
		if err != nil {
			return nil, errs.NewValidationError(err.Error())
		}
		if !res.Valid {
			return nil, errs.NewValidationError("input validation failed", res.GetErrorMessages()...)
		}
	}

	req := &Request{
		Function:  desc.Name,
		RequestID: c.GetString(requestIDKey),
		Caller:    caller,
		Data:      data,
	}
	if token := auth.BearerToken(c.GetHeader(HeaderCRMAuthorization)); token != "" {
		instanceURL := c.GetHeader(HeaderCRMInstanceURL)
		if err := salesforce.CheckInstanceURL(instanceURL, g.instanceHosts); err != nil {
			return nil, err
		}
		req.CRM.AccessToken = token
		req.CRM.InstanceURL = instanceURL
	}

	timeout := config.GetDuration(fnCfg.Timeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	log := g.logger.WithFields(map[string]interface{}{
		"function":  desc.Name,
		"uid":       caller.UID,
		"role":      caller.Role,
		"requestId": req.RequestID,
	})
	ctx = logger.IntoContext(ctx, log)
	ctx = auth.WithCaller(ctx, caller)

	if g.obs != nil {
		spanCtx, sp := g.obs.StartSpan(ctx, "function "+desc.Name,
			attribute.String("function.name", desc.Name),
			attribute.String("enduser.id", caller.UID),
		)
		ctx = spanCtx
		result, err := fn.Invoke(ctx, req)
		observability.EndSpan(sp, err)
		return result, normalize(ctx, err)
	}

	result, err := fn.Invoke(ctx, req)
	return result, normalize(ctx, err)
}

// normalize reports a blown invocation deadline as TIMEOUT_ERROR even when
// the function wrapped the context error.
func normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded && !errs.HasCode(err, errs.ErrCodeTimeout) {
		return errs.NewTimeoutError("function", err)
	}
	return err
}

func (g *Gateway) authenticate(ctx context.Context, header string) (*auth.Caller, error) {
	token := auth.BearerToken(header)
	if token == "" {
		return nil, errs.NewUnauthenticatedError("missing bearer ID token")
	}
	if g.verifier == nil {
		return nil, errs.NewUnauthenticatedError("no token verifier configured")
	}
	caller, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	switch {
	case g.admins[caller.UID]:
		caller.Role = auth.RoleAdmin
	case g.roles != nil:
		role, err := g.roles.ResolveRole(ctx, caller.UID)
		if err != nil {
			return nil, err
		}
		caller.Role = role
	default:
		caller.Role = auth.RoleCustomer
	}
	return caller, nil
}

func readEnvelope(body io.Reader) (json.RawMessage, error) {
	if body == nil {
		return nil, errs.NewValidationError(`request body must be {"data": ...}`)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.NewValidationError("cannot read request body: " + err.Error())
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errs.NewValidationError(`request body must be {"data": ...}`)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return nil, errs.NewValidationError("request body is not valid JSON: " + err.Error())
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return json.RawMessage("{}"), nil
	}
	return env.Data, nil
}

func (g *Gateway) fail(c *gin.Context, name string, err error) {
	std := errs.AsStandardError(err)
	metrics.FunctionFailures.WithLabelValues(name, string(std.Code)).Inc()
	status, body := g.errors.Handle(name, std)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// ==========================
// Middleware
// ==========================

const (
	requestIDKey   = "requestId"
	defaultTimeout = 60 * time.Second
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errs.ErrorBody{
				Status:  errs.CallableStatus(errs.ErrCodeValidationFailed),
				Code:    errs.ErrCodeValidationFailed,
				Message: "Request body exceeds maximum allowed size",
			}})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (g *Gateway) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				g.fail(c, c.Param("name"), errs.NewInternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

func (g *Gateway) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		g.logger.Info("request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  c.GetString(requestIDKey),
		})
	}
}
