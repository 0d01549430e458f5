package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framevault/dedupe-engine/internal/resolution"
	"github.com/framevault/dedupe-engine/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool

	// resolver rebinds persisted conditional keys to live host conditionals
	resolve resolution.ConditionalResolver
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string, resolve resolution.ConditionalResolver) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for the Dedupe Engine")
	return &PostgresStore{pool: pool, resolve: resolve}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Dedupe Engine schema initialized")
	return nil
}

// SaveRules persists the rule set inside one transaction. Rules without an id
// get one from the rules sequence before their envelope is written, so a rule
// never hits the pair-status table unassigned.
func (s *PostgresStore) SaveRules(ctx context.Context, rules []*resolution.Rule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rule := range rules {
		if !rule.HasID() {
			var id int64
			if err := tx.QueryRow(ctx, `SELECT nextval('auto_resolution_rule_ids')`).Scan(&id); err != nil {
				return fmt.Errorf("assigning rule id: %v", err)
			}
			rule.ID = id
		}

		blob, err := resolution.EncodeRule(rule)
		if err != nil {
			return fmt.Errorf("encoding rule %q: %v", rule.Name, err)
		}

		insertRuleSQL := `
			INSERT INTO auto_resolution_rules (rule_id, name, paused, blob)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (rule_id) DO UPDATE
			SET name = EXCLUDED.name, paused = EXCLUDED.paused, blob = EXCLUDED.blob;
		`
		if _, err := tx.Exec(ctx, insertRuleSQL, rule.ID, rule.Name, rule.Paused, blob); err != nil {
			return fmt.Errorf("failed to insert rule %d: %v", rule.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadRules reads every persisted rule, migrating old envelopes forward.
func (s *PostgresStore) LoadRules(ctx context.Context) ([]*resolution.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT blob FROM auto_resolution_rules ORDER BY rule_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*resolution.Rule
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}

		rule, err := resolution.DecodeRule(blob, s.resolve)
		if err != nil {
			return nil, fmt.Errorf("decoding rule: %v", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// FetchCandidateBatch pulls untested or unsearched pairs for one rule.
func (s *PostgresStore) FetchCandidateBatch(ctx context.Context, rule *resolution.Rule, limit int) ([]*models.PairCandidate, error) {
	sql := `
		SELECT p.pair_id, p.status,
		       a.file_id, a.hash, a.mime, a.filesize, a.width, a.height, a.has_alpha, a.has_icc, a.imported_ms,
		       b.file_id, b.hash, b.mime, b.filesize, b.width, b.height, b.has_alpha, b.has_icc, b.imported_ms
		FROM pair_candidates p
		JOIN media_files a ON a.file_id = p.file_a
		JOIN media_files b ON b.file_id = p.file_b
		WHERE p.rule_id = $1 AND p.status IN ($2, $3)
		ORDER BY p.pair_id
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, sql, rule.ID, resolution.StatusMatchesNotTested, resolution.StatusNotSearched, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairCandidate
	for rows.Next() {
		var (
			pair models.PairCandidate
			a, b models.MediaResult
		)
		err := rows.Scan(&pair.PairID, &pair.Status,
			&a.FileID, &a.Hash, &a.Mime, &a.Filesize, &a.Resolution.Width, &a.Resolution.Height, &a.HasAlpha, &a.HasICC, &a.ImportedMS,
			&b.FileID, &b.Hash, &b.Mime, &b.Filesize, &b.Resolution.Width, &b.Resolution.Height, &b.HasAlpha, &b.HasICC, &b.ImportedMS)
		if err != nil {
			return nil, err
		}

		pair.RuleID = rule.ID
		pair.FileA = &a
		pair.FileB = &b
		pairs = append(pairs, &pair)
	}
	if pairs == nil {
		pairs = []*models.PairCandidate{}
	}
	return pairs, rows.Err()
}

// SetPairStatus records a status transition for one pair.
func (s *PostgresStore) SetPairStatus(ctx context.Context, pairID int64, status int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE pair_candidates SET status = $1, decided_at = NOW() WHERE pair_id = $2`,
		status, pairID)
	return err
}

// ApplyAction records the duplicate decision and removes the pair from the
// candidate population. Actual file deletion belongs to the host library;
// the engine writes the decision it should act on.
func (s *PostgresStore) ApplyAction(ctx context.Context, rule *resolution.Rule, better, worse *models.MediaResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertDecisionSQL := `
		INSERT INTO duplicate_decisions (rule_id, better_file, worse_file, action)
		VALUES ($1, $2, $3, $4);
	`
	if _, err := tx.Exec(ctx, insertDecisionSQL, rule.ID, better.FileID, worse.FileID, rule.Action); err != nil {
		return fmt.Errorf("failed to insert duplicate decision: %v", err)
	}

	deletePairSQL := `
		DELETE FROM pair_candidates
		WHERE rule_id = $1
		  AND ((file_a = $2 AND file_b = $3) OR (file_a = $3 AND file_b = $2));
	`
	if _, err := tx.Exec(ctx, deletePairSQL, rule.ID, better.FileID, worse.FileID); err != nil {
		return fmt.Errorf("failed to clear decided pair: %v", err)
	}

	return tx.Commit(ctx)
}

// UpsertMediaFile registers or refreshes one file's metadata snapshot.
func (s *PostgresStore) UpsertMediaFile(ctx context.Context, m *models.MediaResult) error {
	sql := `
		INSERT INTO media_files (file_id, hash, mime, filesize, width, height, has_alpha, has_icc, imported_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (file_id) DO UPDATE
		SET hash = EXCLUDED.hash, mime = EXCLUDED.mime, filesize = EXCLUDED.filesize,
		    width = EXCLUDED.width, height = EXCLUDED.height,
		    has_alpha = EXCLUDED.has_alpha, has_icc = EXCLUDED.has_icc,
		    imported_ms = EXCLUDED.imported_ms;
	`
	_, err := s.pool.Exec(ctx, sql, m.FileID, m.Hash, m.Mime, m.Filesize,
		m.Resolution.Width, m.Resolution.Height, m.HasAlpha, m.HasICC, m.ImportedMS)
	return err
}

// EnqueuePairCandidate registers a fresh potential-duplicate pair for a rule,
// defaulting to the not-yet-searched status.
func (s *PostgresStore) EnqueuePairCandidate(ctx context.Context, ruleID, fileA, fileB int64) error {
	sql := `
		INSERT INTO pair_candidates (rule_id, file_a, file_b, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rule_id, file_a, file_b) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, ruleID, fileA, fileB, resolution.StatusNotSearched)
	return err
}

// ListMediaFiles pages through the registered library for the scanner.
func (s *PostgresStore) ListMediaFiles(ctx context.Context, afterFileID int64, limit int) ([]*models.MediaResult, error) {
	sql := `
		SELECT file_id, hash, mime, filesize, width, height, has_alpha, has_icc, imported_ms
		FROM media_files
		WHERE file_id > $1
		ORDER BY file_id
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, sql, afterFileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.MediaResult
	for rows.Next() {
		var m models.MediaResult
		err := rows.Scan(&m.FileID, &m.Hash, &m.Mime, &m.Filesize,
			&m.Resolution.Width, &m.Resolution.Height, &m.HasAlpha, &m.HasICC, &m.ImportedMS)
		if err != nil {
			return nil, err
		}
		files = append(files, &m)
	}
	if files == nil {
		files = []*models.MediaResult{}
	}
	return files, rows.Err()
}

// GetMediaFile loads one file's metadata snapshot by id.
func (s *PostgresStore) GetMediaFile(ctx context.Context, fileID int64) (*models.MediaResult, error) {
	var m models.MediaResult
	err := s.pool.QueryRow(ctx, `
		SELECT file_id, hash, mime, filesize, width, height, has_alpha, has_icc, imported_ms
		FROM media_files WHERE file_id = $1
	`, fileID).Scan(&m.FileID, &m.Hash, &m.Mime, &m.Filesize,
		&m.Resolution.Width, &m.Resolution.Height, &m.HasAlpha, &m.HasICC, &m.ImportedMS)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("no media file %d", fileID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetPool exposes the connection pool for the shadow runner and other subsystems.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
