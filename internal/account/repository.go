package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/db"
)

type Repository interface {
	CreateCitizen(ctx context.Context, id Identity, c Citizen) error
	CreateOfficer(ctx context.Context, id Identity, o Officer) error

	IdentityByEmail(ctx context.Context, email string) (*Identity, error)
	IdentityByID(ctx context.Context, userID uuid.UUID) (*Identity, error)
	CitizenByUserID(ctx context.Context, userID uuid.UUID) (*Citizen, error)
	CitizenByNIC(ctx context.Context, nic string) (*Citizen, error)
	OfficerByUserID(ctx context.Context, userID uuid.UUID) (*Officer, error)

	UpdateCitizen(ctx context.Context, c *Citizen) error
	UpdateOfficer(ctx context.Context, o *Officer) error
	StampLogout(ctx context.Context, userID uuid.UUID, at time.Time) error

	// SetPassword replaces the hash only while it still equals current.
	SetPassword(ctx context.Context, userID uuid.UUID, current, next string) error

	UserIDsByRole(ctx context.Context, role auth.Role) ([]uuid.UUID, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func insertIdentity(ctx context.Context, q db.DBTX, id Identity) error {
	_, err := q.Exec(ctx, `
		INSERT INTO identities (user_id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id.UserID, id.Email, id.PasswordHash, id.Role, id.CreatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) CreateCitizen(ctx context.Context, id Identity, c Citizen) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertIdentity(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO citizens (
				nic, user_id, full_name, email, phone_number, blood_group, address_line1,
				address_line2, city, date_of_birth, gender, is_active, notification_preferences,
				created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`,
			c.NIC, c.UserID, c.FullName, c.Email, c.PhoneNumber, c.BloodGroup, c.Address.Line1,
			c.Address.Line2, c.Address.City, c.DateOfBirth, c.Gender, c.IsActive, c.NotificationPreferences,
			c.CreatedAt, c.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrNICTaken
		}
		return err
	})
}

func (r *PgRepository) CreateOfficer(ctx context.Context, id Identity, o Officer) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertIdentity(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO officers (user_id, email, name, role, department, phone, is_active, notification_preferences, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, o.UserID, o.Email, o.Name, o.Role, o.Department, o.Phone, o.IsActive, o.NotificationPreferences, o.CreatedAt, o.UpdatedAt)
		return err
	})
}

const identityColumns = `user_id, email, password_hash, role, last_logout_at, created_at`

func scanIdentity(row pgx.Row) (*Identity, error) {
	var id Identity
	err := row.Scan(&id.UserID, &id.Email, &id.PasswordHash, &id.Role, &id.LastLogoutAt, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &id, nil
}

func (r *PgRepository) IdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, email))
}

func (r *PgRepository) IdentityByID(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE user_id = $1`, userID))
}

const citizenColumns = `nic, user_id, full_name, email, phone_number, blood_group, address_line1,
	address_line2, city, date_of_birth, gender, is_active, notification_preferences, created_at, updated_at`

func scanCitizen(row pgx.Row) (*Citizen, error) {
	var c Citizen
	err := row.Scan(
		&c.NIC,
		&c.UserID,
		&c.FullName,
		&c.Email,
		&c.PhoneNumber,
		&c.BloodGroup,
		&c.Address.Line1,
		&c.Address.Line2,
		&c.Address.City,
		&c.DateOfBirth,
		&c.Gender,
		&c.IsActive,
		&c.NotificationPreferences,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCitizenNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) CitizenByUserID(ctx context.Context, userID uuid.UUID) (*Citizen, error) {
	return scanCitizen(r.pool.QueryRow(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE user_id = $1`, userID))
}

func (r *PgRepository) CitizenByNIC(ctx context.Context, nic string) (*Citizen, error) {
	return scanCitizen(r.pool.QueryRow(ctx, `SELECT `+citizenColumns+` FROM citizens WHERE nic = $1`, nic))
}

func (r *PgRepository) OfficerByUserID(ctx context.Context, userID uuid.UUID) (*Officer, error) {
	var o Officer
	err := r.pool.QueryRow(ctx, `
		SELECT o.user_id, o.email, o.name, o.role, o.department, o.phone, o.is_active,
		       o.notification_preferences, i.last_logout_at, o.created_at, o.updated_at
		FROM officers o
		JOIN identities i ON i.user_id = o.user_id
		WHERE o.user_id = $1
	`, userID).Scan(
		&o.UserID, &o.Email, &o.Name, &o.Role, &o.Department, &o.Phone, &o.IsActive,
		&o.NotificationPreferences, &o.LastLogoutAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) UpdateCitizen(ctx context.Context, c *Citizen) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE citizens
		SET full_name = $2,
		    phone_number = $3,
		    blood_group = $4,
		    address_line1 = $5,
		    address_line2 = $6,
		    city = $7,
		    date_of_birth = $8,
		    gender = $9,
		    notification_preferences = $10,
		    updated_at = $11
		WHERE nic = $1
	`, c.NIC, c.FullName, c.PhoneNumber, c.BloodGroup, c.Address.Line1, c.Address.Line2, c.Address.City,
		c.DateOfBirth, c.Gender, c.NotificationPreferences, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update citizen: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateOfficer(ctx context.Context, o *Officer) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE officers
		SET name = $2,
		    phone = $3,
		    department = $4,
		    notification_preferences = $5,
		    updated_at = $6
		WHERE user_id = $1
	`, o.UserID, o.Name, o.Phone, o.Department, o.NotificationPreferences, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update officer: %w", err)
	}
	return nil
}

func (r *PgRepository) StampLogout(ctx context.Context, userID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET last_logout_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("stamp logout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) SetPassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities SET password_hash = $3
		WHERE user_id = $1 AND password_hash = $2
	`, userID, current, next)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResetTokenUsed
	}
	return nil
}

func (r *PgRepository) UserIDsByRole(ctx context.Context, role auth.Role) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM identities WHERE role = $1`, role)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
