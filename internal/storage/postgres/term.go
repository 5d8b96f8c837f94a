package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	TermGenre = "genre"
	TermStyle = "style"
)

// Term is a genre or style name shared across instances.
type Term struct {
	ID   int64  `db:"id"`
	Kind string `db:"kind"`
	Name string `db:"name"`
}

type TermStore struct {
	db *sqlx.DB
}

func NewTermStore(db *sqlx.DB) *TermStore {
	return &TermStore{db: db}
}

// UpsertBatch inserts missing terms and returns the ids of all of them.
func (s *TermStore) UpsertBatch(ctx context.Context, terms []Term) ([]int64, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO terms (kind, name) VALUES ")
	valueArgs := make([]interface{}, 0, len(terms)*2)

	for i, term := range terms {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($")
		sb.WriteString(itoa(i*2 + 1))
		sb.WriteString(", $")
		sb.WriteString(itoa(i*2 + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, term.Kind, term.Name)
	}
	sb.WriteString(" ON CONFLICT (kind, name) DO UPDATE SET name = EXCLUDED.name RETURNING id")

	var ids []int64
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids, sb.String(), valueArgs...)
	return ids, err
}

// LinkToInstance replaces the terms linked to an instance.
func (s *TermStore) LinkToInstance(ctx context.Context, instanceID int64, terms []Term) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx,
		"DELETE FROM item_terms WHERE instance_id = $1",
		instanceID,
	)
	if err != nil {
		return err
	}

	termIDs, err := s.UpsertBatch(ctx, dedupTerms(terms))
	if err != nil {
		return err
	}
	if len(termIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO item_terms (instance_id, term_id) VALUES ")
	valueArgs := make([]interface{}, 0, len(termIDs)+1)
	valueArgs = append(valueArgs, instanceID)

	for i, termID := range termIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(itoa(i + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, termID)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err = exec.ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

// GetByInstanceID lists the terms linked to an instance.
func (s *TermStore) GetByInstanceID(ctx context.Context, instanceID int64) ([]Term, error) {
	query := `
		SELECT t.id, t.kind, t.name
		FROM terms t
		INNER JOIN item_terms it ON it.term_id = t.id
		WHERE it.instance_id = $1
		ORDER BY t.kind, t.name`

	var terms []Term
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &terms, query, instanceID)
	return terms, err
}

// A single INSERT ... ON CONFLICT DO UPDATE cannot touch the same row twice.
func dedupTerms(terms []Term) []Term {
	seen := make(map[Term]struct{}, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		key := Term{Kind: t.Kind, Name: t.Name}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
