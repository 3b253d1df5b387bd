// Package postgres serves keyword search over the passage corpus using
// Postgres full-text search. It is one of the two lexical backends; the
// sparse-vector backend lives in the qdrant package.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

type Index struct {
	db *sql.DB
}

func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// SearchTerms ranks passages by ts_rank against an OR-joined term query.
// The passages table is written by the ingestion service; tsv is a stored
// tsvector column over the passage text.
func (i *Index) SearchTerms(
	ctx context.Context,
	terms []string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	query := termsQuery(terms)
	if query == "" {
		return nil, nil
	}

	sqlQuery := `
SELECT content, document_name, document_type, version,
       ts_rank(tsv, to_tsquery('simple', $1)) AS rank
FROM passages
WHERE tsv @@ to_tsquery('simple', $1)
`
	args := []any{query}
	if filter.Version != "" {
		args = append(args, filter.Version)
		sqlQuery += fmt.Sprintf("  AND version = $%d\n", len(args))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		sqlQuery += fmt.Sprintf("  AND document_type = $%d\n", len(args))
	}
	args = append(args, limit)
	sqlQuery += fmt.Sprintf("ORDER BY rank DESC\nLIMIT $%d", len(args))

	rows, err := i.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var (
			content, docName string
			docType, version sql.NullString
			rank             float64
		)
		if err := rows.Scan(&content, &docName, &docType, &version, &rank); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		c := domain.Candidate{
			Content:      content,
			DocumentName: docName,
			VectorScore:  rank,
		}
		if docType.Valid || version.Valid {
			c.Metadata = map[string]any{}
			if docType.Valid {
				c.Metadata["document_type"] = docType.String
			}
			if version.Valid {
				c.Metadata["version"] = version.String
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}

// termsQuery builds an OR tsquery from the expanded query terms. Terms are
// lowercased and anything the lexer would reject is dropped rather than
// escaped; the lexical stage degrades, it never fails the whole search.
func termsQuery(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = sanitizeTerm(t)
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " | ")
}

func sanitizeTerm(term string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(term)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
