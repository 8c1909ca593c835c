package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"todo-calendar/internal/model"
)

const maxInputBytes = 1 << 20

// Kind tells queries (GET) from mutations (POST).
type Kind int

const (
	Query Kind = iota
	Mutation
)

func (k Kind) method() string {
	if k == Mutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// Call carries one procedure invocation.
type Call struct {
	Context context.Context
	// User is nil for anonymous callers of public procedures.
	User  *model.User
	input []byte
	gin   *gin.Context
}

// Bind decodes the JSON input into dst and validates its binding tags.
func (c *Call) Bind(dst interface{}) error {
	raw := bytes.TrimSpace(c.input)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	err := binding.JSON.BindBody(raw, dst)
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		return newError(CodeBadRequest, "Input is not valid JSON for this procedure")
	}
	return err
}

type handlerFunc func(c *Call) (interface{}, error)

type procedure struct {
	kind      Kind
	protected bool
	handler   handlerFunc
}

func (s *Server) publicQuery(name string, h handlerFunc) {
	s.procedures[name] = procedure{kind: Query, handler: h}
}

func (s *Server) publicMutation(name string, h handlerFunc) {
	s.procedures[name] = procedure{kind: Mutation, handler: h}
}

func (s *Server) protectedQuery(name string, h handlerFunc) {
	s.procedures[name] = procedure{kind: Query, protected: true, handler: h}
}

func (s *Server) protectedMutation(name string, h handlerFunc) {
	s.procedures[name] = procedure{kind: Mutation, protected: true, handler: h}
}

func (s *Server) dispatch(c *gin.Context) {
	name := c.Param("procedure")
	label := name
	if _, ok := s.procedures[name]; !ok {
		label = "unknown"
	}

	start := time.Now()
	result, err := s.invoke(c, name)
	code := "OK"

	if err != nil {
		apiErr, unexpected := toError(err)
		if unexpected {
			s.log.Error("procedure failed", zap.String("procedure", name), zap.Error(err))
		}
		code = string(apiErr.Code)
		c.JSON(apiErr.Code.Status(), gin.H{"error": apiErr})
	} else {
		c.JSON(http.StatusOK, gin.H{"result": result})
	}

	s.metrics.ProcedureCalls.WithLabelValues(label, code).Inc()
	s.metrics.ProcedureDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

func (s *Server) invoke(c *gin.Context, name string) (interface{}, error) {
	proc, ok := s.procedures[name]
	if !ok {
		return nil, newError(CodeNotFound, "No procedure found on path \""+name+"\"")
	}
	if c.Request.Method != proc.kind.method() {
		return nil, newError(CodeMethodNotSupported, "Unsupported "+c.Request.Method+" for "+name)
	}

	user := CurrentUser(c)
	if proc.protected && user == nil {
		if err := authError(c); err != nil {
			return nil, err
		}
		return nil, newError(CodeUnauthorized, "Please login")
	}

	input, err := readInput(c, proc.kind)
	if err != nil {
		return nil, err
	}
	return proc.handler(&Call{Context: c.Request.Context(), User: user, input: input, gin: c})
}

func readInput(c *gin.Context, kind Kind) ([]byte, error) {
	if kind == Query {
		return []byte(c.Query("input")), nil
	}
	// A cross-site application/json request needs a CORS preflight.
	if c.ContentType() != binding.MIMEJSON {
		return nil, newError(CodeUnsupportedMedia, "Mutations require an application/json body")
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxInputBytes))
	if err != nil {
		return nil, newError(CodeBadRequest, "Request body is too large")
	}
	return body, nil
}
