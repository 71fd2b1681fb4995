package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// AgentRepository handles persistence for agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	List(ctx context.Context, limit, offset int) ([]domain.Agent, error)
	// ActiveTicketCounts returns every agent with its number of non-closed tickets.
	ActiveTicketCounts(ctx context.Context) ([]domain.AgentLoad, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (name, email, phone)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query, agent.Name, agent.Email, agent.Phone).
		Scan(&agent.ID, &agent.CreatedAt)
	return classify(err, "agent")
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `UPDATE agents SET name=$1, email=$2, phone=$3 WHERE id=$4`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, agent.Name, agent.Email, agent.Phone, agent.ID)
	if err != nil {
		return classify(err, "agent")
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the agent; its tickets keep their status with agent_id set to NULL.
func (r *agentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM agents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	const query = `SELECT id, name, email, phone, created_at FROM agents WHERE id=$1`
	var agent domain.Agent
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Phone,
		&agent.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) List(ctx context.Context, limit, offset int) ([]domain.Agent, error) {
	limit, offset = pageBounds(limit, offset)
	const query = `SELECT id, name, email, phone, created_at FROM agents ORDER BY id ASC LIMIT $1 OFFSET $2`
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Agent{}
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Email, &agent.Phone, &agent.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}

func (r *agentRepository) ActiveTicketCounts(ctx context.Context) ([]domain.AgentLoad, error) {
	const query = `
        SELECT a.id, COUNT(t.id)
        FROM agents a
        LEFT JOIN tickets t ON t.agent_id = a.id AND t.status <> 'closed'
        GROUP BY a.id
        ORDER BY a.id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AgentLoad
	for rows.Next() {
		var load domain.AgentLoad
		if err := rows.Scan(&load.AgentID, &load.ActiveTickets); err != nil {
			return nil, err
		}
		result = append(result, load)
	}
	return result, rows.Err()
}
