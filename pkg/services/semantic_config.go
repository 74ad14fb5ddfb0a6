package services

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// SemanticProvider returns human-authored column descriptions per schema.
type SemanticProvider interface {
	// SchemaSemantics fails with ErrSemanticsNotFound when the schema has
	// no entry. An unknown column maps to the zero ColumnSemantics.
	SchemaSemantics(schemaType models.SchemaType) (models.SchemaSemantics, error)
}

// ParseSemantics decodes a semantics document keyed by semantic key, e.g.
// unsafe_events_srs, then column name.
func ParseSemantics(data []byte) (map[string]models.SchemaSemantics, error) {
	var doc map[string]models.SchemaSemantics
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse semantics: %w", err)
	}
	if doc == nil {
		doc = map[string]models.SchemaSemantics{}
	}
	return doc, nil
}

type semanticConfigService struct {
	path   string
	logger *zap.Logger

	once sync.Once
	data map[string]models.SchemaSemantics
	err  error
}

// NewSemanticConfigService loads the semantics file at path on first use.
// YAML is a superset of JSON, so JSON semantics files load unchanged.
func NewSemanticConfigService(path string, logger *zap.Logger) SemanticProvider {
	return &semanticConfigService{
		path:   path,
		logger: logger.Named("semantic-config"),
	}
}

var _ SemanticProvider = (*semanticConfigService)(nil)

func (s *semanticConfigService) load() (map[string]models.SchemaSemantics, error) {
	s.once.Do(func() {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			s.err = fmt.Errorf("read semantics file %s: %w", s.path, err)
			return
		}
		s.data, s.err = ParseSemantics(raw)
		if s.err == nil {
			s.logger.Info("Loaded semantic config",
				zap.String("path", s.path),
				zap.Int("schemas", len(s.data)))
		}
	})
	return s.data, s.err
}

func (s *semanticConfigService) SchemaSemantics(schemaType models.SchemaType) (models.SchemaSemantics, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return lookupSchemaSemantics(data, schemaType)
}

// staticSemantics serves an in-memory document.
type staticSemantics struct {
	data map[string]models.SchemaSemantics
}

// NewStaticSemanticProvider serves semantics that are already loaded.
func NewStaticSemanticProvider(data map[string]models.SchemaSemantics) SemanticProvider {
	return &staticSemantics{data: data}
}

func (s *staticSemantics) SchemaSemantics(schemaType models.SchemaType) (models.SchemaSemantics, error) {
	return lookupSchemaSemantics(s.data, schemaType)
}

func lookupSchemaSemantics(data map[string]models.SchemaSemantics, schemaType models.SchemaType) (models.SchemaSemantics, error) {
	if !schemaType.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownSchemaType, schemaType)
	}
	schema, ok := data[schemaType.SemanticKey()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSemanticsNotFound, schemaType.SemanticKey())
	}
	return schema, nil
}
