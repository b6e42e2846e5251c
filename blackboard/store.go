package blackboard

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/logger"
)

// Store is the findings store used by extraction units.
// Failures are returned marked with errors.ErrStore.
type Store interface {
	// NewArtifact creates an empty artifact of the given type on contentRef.
	NewArtifact(ctx context.Context, contentRef string, artifactType ArtifactType) (*Artifact, error)

	// AddAttributes attaches attrs to the artifact in one batch: either all
	// are stored or none are.
	AddAttributes(ctx context.Context, artifact *Artifact, attrs []Attribute) error

	// CreateArtifact stores an artifact together with its attributes in one
	// transaction. Nothing is stored if any insert fails.
	CreateArtifact(ctx context.Context, contentRef string, artifactType ArtifactType, attrs []Attribute) (*Artifact, error)

	// ArtifactsByType returns every artifact of the type with its attributes,
	// in creation order.
	ArtifactsByType(ctx context.Context, artifactType ArtifactType) ([]*Artifact, error)

	// ArtifactsInDataSource is ArtifactsByType restricted to content of one
	// data source.
	ArtifactsInDataSource(ctx context.Context, dataSource string, artifactType ArtifactType) ([]*Artifact, error)

	// CountArtifacts counts artifacts of the type.
	CountArtifacts(ctx context.Context, artifactType ArtifactType) (int, error)
}

// ContentRef names a content object of a data source. Artifacts are
// attributed to a data source through this prefix.
func ContentRef(dataSource, path string) string {
	return dataSource + ":" + path
}

const (
	artifactInsertQuery = `
		INSERT INTO artifacts (content_ref, artifact_type) VALUES (?, ?)`

	attributeInsertQuery = `
		INSERT INTO attributes (artifact_id, attribute_type, source, value_type, value_int, value_double, value_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	artifactsByTypeQuery = `
		SELECT a.id, a.content_ref, t.attribute_type, t.source, t.value_type, t.value_int, t.value_double, t.value_text
		FROM artifacts a
		LEFT JOIN attributes t ON t.artifact_id = a.id
		WHERE a.artifact_type = ?
		ORDER BY a.id, t.id`

	artifactsInDataSourceQuery = `
		SELECT a.id, a.content_ref, t.attribute_type, t.source, t.value_type, t.value_int, t.value_double, t.value_text
		FROM artifacts a
		LEFT JOIN attributes t ON t.artifact_id = a.id
		WHERE a.artifact_type = ? AND substr(a.content_ref, 1, length(?)) = ?
		ORDER BY a.id, t.id`

	artifactCountQuery = `
		SELECT COUNT(*) FROM artifacts WHERE artifact_type = ?`
)

// SQLStore implements Store on the SQLite schema created by db.Migrate.
type SQLStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new SQL-based findings store
func NewSQLStore(db *sql.DB, log *zap.SugaredLogger) *SQLStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SQLStore{db: db, log: log}
}

// NewArtifact inserts a new artifact row
func (s *SQLStore) NewArtifact(ctx context.Context, contentRef string, artifactType ArtifactType) (*Artifact, error) {
	if !artifactType.Valid() {
		return nil, errors.WrapStore(errors.Newf("unknown artifact type %q", artifactType), "create artifact")
	}

	res, err := s.db.ExecContext(ctx, artifactInsertQuery, contentRef, string(artifactType))
	if err != nil {
		return nil, errors.WrapStore(err, "failed to insert artifact")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.WrapStore(err, "failed to read artifact id")
	}

	s.log.Debugw("Artifact created",
		logger.FieldArtifactID, id,
		logger.FieldArtifactType, artifactType,
		logger.FieldFile, contentRef,
	)

	return &Artifact{ID: id, ContentRef: contentRef, Type: artifactType}, nil
}

// AddAttributes inserts all attributes in a single transaction
func (s *SQLStore) AddAttributes(ctx context.Context, artifact *Artifact, attrs []Attribute) error {
	if artifact == nil {
		return errors.WrapStore(errors.New("artifact is nil"), "add attributes")
	}
	if err := validateAttributes(attrs); err != nil {
		return errors.WrapStore(err, "add attributes")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore(err, "begin attribute batch")
	}
	if err := insertAttributes(ctx, tx, artifact.ID, attrs); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapStore(err, "commit attribute batch")
	}

	artifact.Attributes = append(artifact.Attributes, attrs...)
	return nil
}

// CreateArtifact inserts the artifact row and its attributes in a single
// transaction
func (s *SQLStore) CreateArtifact(ctx context.Context, contentRef string, artifactType ArtifactType, attrs []Attribute) (*Artifact, error) {
	if !artifactType.Valid() {
		return nil, errors.WrapStore(errors.Newf("unknown artifact type %q", artifactType), "create artifact")
	}
	if err := validateAttributes(attrs); err != nil {
		return nil, errors.WrapStore(err, "create artifact")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapStore(err, "begin artifact batch")
	}

	res, err := tx.ExecContext(ctx, artifactInsertQuery, contentRef, string(artifactType))
	if err != nil {
		tx.Rollback()
		return nil, errors.WrapStore(err, "failed to insert artifact")
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, errors.WrapStore(err, "failed to read artifact id")
	}
	if err := insertAttributes(ctx, tx, id, attrs); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.WrapStore(err, "commit artifact batch")
	}

	s.log.Debugw("Artifact created",
		logger.FieldArtifactID, id,
		logger.FieldArtifactType, artifactType,
		logger.FieldFile, contentRef,
		logger.FieldCount, len(attrs),
	)

	return &Artifact{
		ID:         id,
		ContentRef: contentRef,
		Type:       artifactType,
		Attributes: append([]Attribute(nil), attrs...),
	}, nil
}

func validateAttributes(attrs []Attribute) error {
	for _, attr := range attrs {
		if err := attr.validate(); err != nil {
			return err
		}
	}
	return nil
}

func insertAttributes(ctx context.Context, tx *sql.Tx, artifactID int64, attrs []Attribute) error {
	for _, attr := range attrs {
		var intVal, doubleVal, textVal interface{}
		switch attr.valueType {
		case ValueInt:
			intVal = attr.intVal
		case ValueDouble:
			doubleVal = attr.doubleVal
		default:
			textVal = attr.stringVal
		}

		if _, err := tx.ExecContext(ctx, attributeInsertQuery,
			artifactID,
			string(attr.Type),
			attr.Source,
			int(attr.valueType),
			intVal,
			doubleVal,
			textVal,
		); err != nil {
			return errors.WrapStore(err, "failed to insert attribute")
		}
	}
	return nil
}

// ArtifactsByType loads artifacts of one type together with their attributes
func (s *SQLStore) ArtifactsByType(ctx context.Context, artifactType ArtifactType) ([]*Artifact, error) {
	return s.queryArtifacts(ctx, artifactType, artifactsByTypeQuery, string(artifactType))
}

// ArtifactsInDataSource loads artifacts of one type whose content reference
// starts with the data source prefix
func (s *SQLStore) ArtifactsInDataSource(ctx context.Context, dataSource string, artifactType ArtifactType) ([]*Artifact, error) {
	prefix := ContentRef(dataSource, "")
	return s.queryArtifacts(ctx, artifactType, artifactsInDataSourceQuery, string(artifactType), prefix, prefix)
}

func (s *SQLStore) queryArtifacts(ctx context.Context, artifactType ArtifactType, query string, args ...interface{}) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapStore(err, "query artifacts")
	}
	defer rows.Close()

	var artifacts []*Artifact
	var current *Artifact
	for rows.Next() {
		var (
			id         int64
			contentRef string
			attrType   sql.NullString
			source     sql.NullString
			valueType  sql.NullInt64
			intVal     sql.NullInt64
			doubleVal  sql.NullFloat64
			textVal    sql.NullString
		)
		if err := rows.Scan(&id, &contentRef, &attrType, &source, &valueType, &intVal, &doubleVal, &textVal); err != nil {
			return nil, errors.WrapStore(err, "scan artifact row")
		}

		if current == nil || current.ID != id {
			current = &Artifact{ID: id, ContentRef: contentRef, Type: artifactType}
			artifacts = append(artifacts, current)
		}
		if !attrType.Valid {
			continue
		}

		attr := Attribute{
			Type:      AttributeType(attrType.String),
			Source:    source.String,
			valueType: ValueType(valueType.Int64),
			intVal:    intVal.Int64,
			doubleVal: doubleVal.Float64,
			stringVal: textVal.String,
		}
		current.Attributes = append(current.Attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore(err, "iterate artifacts")
	}

	return artifacts, nil
}

// CountArtifacts counts artifacts of one type
func (s *SQLStore) CountArtifacts(ctx context.Context, artifactType ArtifactType) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, artifactCountQuery, string(artifactType)).Scan(&count); err != nil {
		return 0, errors.WrapStore(err, "count artifacts")
	}
	return count, nil
}
