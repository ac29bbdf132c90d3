package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nulzo/model-control-plane/internal/store"
	"github.com/nulzo/model-control-plane/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Secrets() store.SecretRepository {
	return &secretRepo{db: r.executor}
}

func (r *SqliteRepository) Credentials() store.CredentialRepository {
	return &credentialRepo{db: r.executor}
}

func (r *SqliteRepository) Models() store.ModelRepository {
	return &modelRepo{db: r.executor}
}

func (r *SqliteRepository) Agents() store.AgentRepository {
	return &agentRepo{db: r.executor}
}

type secretRepo struct {
	db DB
}

func (r *secretRepo) Create(ctx context.Context, secret *model.Secret) error {
	query := `
	INSERT INTO secrets (id, org_id, team_id, key, value, label, created_date)
	VALUES (:id, :org_id, :team_id, :key, :value, :label, :created_date)`
	_, err := r.db.NamedExecContext(ctx, query, secret)
	return err
}

func (r *secretRepo) Get(ctx context.Context, teamID, id string) (*model.Secret, error) {
	var secret model.Secret
	query := `SELECT * FROM secrets WHERE id = ? AND team_id = ?`
	if err := r.db.GetContext(ctx, &secret, query, id, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &secret, nil
}

func (r *secretRepo) ListByTeam(ctx context.Context, teamID string) ([]model.Secret, error) {
	secrets := []model.Secret{}
	err := r.db.SelectContext(ctx, &secrets, `SELECT * FROM secrets WHERE team_id = ? ORDER BY created_date`, teamID)
	return secrets, err
}

func (r *secretRepo) Update(ctx context.Context, teamID, id string, update model.SecretUpdate) error {
	// Partial semantics: the stored value survives a label-only edit. Only
	// non-empty fields make it into the SET clause.
	sets := []string{}
	args := []interface{}{}
	if update.Key != "" {
		sets = append(sets, "key = ?")
		args = append(args, update.Key)
	}
	if update.Label != "" {
		sets = append(sets, "label = ?")
		args = append(args, update.Label)
	}
	if update.Value != "" {
		sets = append(sets, "value = ?")
		args = append(args, update.Value)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE secrets SET %s WHERE id = ? AND team_id = ?`, strings.Join(sets, ", "))
	args = append(args, id, teamID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *secretRepo) Delete(ctx context.Context, teamID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ? AND team_id = ?`, id, teamID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type credentialRepo struct {
	db DB
}

func (r *credentialRepo) Create(ctx context.Context, credential *model.Credential) error {
	query := `
	INSERT INTO credentials (id, org_id, team_id, name, type, key, api_base, endpoint_url, created_date)
	VALUES (:id, :org_id, :team_id, :name, :type, :key, :api_base, :endpoint_url, :created_date)`
	_, err := r.db.NamedExecContext(ctx, query, credential)
	return err
}

func (r *credentialRepo) Get(ctx context.Context, teamID, id string) (*model.Credential, error) {
	var credential model.Credential
	query := `SELECT * FROM credentials WHERE id = ? AND team_id = ?`
	if err := r.db.GetContext(ctx, &credential, query, id, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &credential, nil
}

func (r *credentialRepo) ListByTeam(ctx context.Context, teamID string) ([]model.Credential, error) {
	credentials := []model.Credential{}
	err := r.db.SelectContext(ctx, &credentials, `SELECT * FROM credentials WHERE team_id = ? ORDER BY created_date`, teamID)
	return credentials, err
}

func (r *credentialRepo) Delete(ctx context.Context, teamID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ? AND team_id = ?`, id, teamID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type modelRepo struct {
	db DB
}

func (r *modelRepo) Create(ctx context.Context, m *model.Model) error {
	query := `
	INSERT INTO models (
		id, org_id, team_id, name, model, provider_model_id,
		type, system, embedding_length, credential_id, owns_credential, created_date
	) VALUES (
		:id, :org_id, :team_id, :name, :model, :provider_model_id,
		:type, :system, :embedding_length, :credential_id, :owns_credential, :created_date
	)`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

func (r *modelRepo) Get(ctx context.Context, teamID, id string) (*model.Model, error) {
	var m model.Model
	query := `SELECT * FROM models WHERE id = ? AND team_id = ?`
	if err := r.db.GetContext(ctx, &m, query, id, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *modelRepo) ListByTeam(ctx context.Context, teamID string) ([]model.Model, error) {
	models := []model.Model{}
	err := r.db.SelectContext(ctx, &models, `SELECT * FROM models WHERE team_id = ? ORDER BY created_date`, teamID)
	return models, err
}

func (r *modelRepo) Update(ctx context.Context, teamID, id string, update model.ModelUpdate) error {
	query := `
	UPDATE models SET
		name = ?, model = ?, provider_model_id = ?,
		type = ?, system = ?, embedding_length = ?,
		credential_id = ?, owns_credential = ?
	WHERE id = ? AND team_id = ?`
	res, err := r.db.ExecContext(ctx, query,
		update.Name, update.Model, update.ProviderModelID,
		update.Type, update.System, update.EmbeddingLength,
		update.CredentialID, update.OwnsCredential,
		id, teamID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *modelRepo) Delete(ctx context.Context, teamID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE id = ? AND team_id = ?`, id, teamID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type agentRepo struct {
	db DB
}

func (r *agentRepo) RemoveModelReference(ctx context.Context, teamID, modelID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE agents SET model_id = '' WHERE team_id = ? AND model_id = ?`, teamID, modelID)
	return err
}

func (r *agentRepo) ListByTeam(ctx context.Context, teamID string) ([]model.Agent, error) {
	agents := []model.Agent{}
	err := r.db.SelectContext(ctx, &agents, `SELECT * FROM agents WHERE team_id = ? ORDER BY id`, teamID)
	return agents, err
}

func (r *agentRepo) Create(ctx context.Context, agent *model.Agent) error {
	query := `INSERT INTO agents (id, team_id, name, model_id) VALUES (:id, :team_id, :name, :model_id)`
	_, err := r.db.NamedExecContext(ctx, query, agent)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
