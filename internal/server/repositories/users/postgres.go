package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tbsky/session/internal/common"
	"github.com/tbsky/session/internal/dbx"
	"github.com/tbsky/session/internal/server/models"
)

// pgUniqueViolation is the SQLSTATE for unique-constraint failures.
const pgUniqueViolation = "23505"

const userColumns = "user_id, first_name, last_name, email, hashed_password, deleted, created_by, created_at, updated_by, updated_at"

// filterColumns lists the columns callers may filter on. Anything else is a
// programming error, not user input, and is rejected loudly.
var filterColumns = map[string]bool{
	"user_id":    true,
	"first_name": true,
	"last_name":  true,
	"email":      true,
	"created_by": true,
	"updated_by": true,
}

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, filters Filters) ([]*models.User, error) {
	query, args, err := buildSelect(filters)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(
			&user.ID, &user.FirstName, &user.LastName, &user.Email,
			&user.HashedPassword, &user.Deleted,
			&user.CreatedBy, &user.CreatedAt, &user.UpdatedBy, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetFirst(ctx context.Context, filters Filters) (*models.User, error) {
	found, err := r.Get(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *PostgresRepository) GetOne(ctx context.Context, filters Filters) (*models.User, error) {
	user, err := r.GetFirst(ctx, filters)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

// Create inserts the user and refreshes server-generated fields. A duplicate
// email surfaces as common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (user_id, first_name, last_name, email, hashed_password, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email,
		user.HashedPassword, user.CreatedBy,
	).Scan(&user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// buildSelect renders the WHERE clause for the given filters with
// deterministic column order.
func buildSelect(filters Filters) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + userColumns + " FROM users WHERE deleted = FALSE")

	columns := make([]string, 0, len(filters))
	for col := range filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var args []any
	for _, col := range columns {
		if !filterColumns[col] {
			return "", nil, fmt.Errorf("unknown filter column: %s", col)
		}
		switch value := filters[col].(type) {
		case nil:
			fmt.Fprintf(&sb, " AND %s IS NULL", col)
		case []string:
			// An empty list matches nothing; `IN ()` is not valid SQL.
			if len(value) == 0 {
				sb.WriteString(" AND FALSE")
				continue
			}
			placeholders := make([]string, len(value))
			for i, v := range value {
				args = append(args, v)
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			fmt.Fprintf(&sb, " AND %s IN (%s)", col, strings.Join(placeholders, ", "))
		case []any:
			if len(value) == 0 {
				sb.WriteString(" AND FALSE")
				continue
			}
			placeholders := make([]string, len(value))
			for i, v := range value {
				args = append(args, v)
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			fmt.Fprintf(&sb, " AND %s IN (%s)", col, strings.Join(placeholders, ", "))
		default:
			args = append(args, value)
			fmt.Fprintf(&sb, " AND %s = $%d", col, len(args))
		}
	}
	return sb.String(), args, nil
}

var _ Repository = (*PostgresRepository)(nil)
