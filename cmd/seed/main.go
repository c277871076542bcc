package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/migrations"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/slot"
)

const (
	citizenCount = 2000
	slotDays     = 14

	// Largest number of rows written per transaction.
	batchSize = 500

	seedPassword = "password123"
)

var logger = observability.NewLogger("seed", "dev")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fail("config load error", err)
	}
	if err := migrations.Up(cfg.PostgresDSN); err != nil {
		fail("migrate", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		fail("connect postgres", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		fail("hash password", err)
	}

	if err := seedOfficers(context.Background(), pool, string(hash)); err != nil {
		fail("seed officers", err)
	}
	if err := seedCitizens(context.Background(), pool, citizenCount, string(hash)); err != nil {
		fail("seed citizens", err)
	}
	if err := seedSlots(context.Background(), pool, slotDays); err != nil {
		fail("seed slots", err)
	}

	logger.Info("seed complete", "password", seedPassword)
}

func fail(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// seedOfficers creates one admin plus a staff member per department. Existing
// accounts are left alone so the seeder can be rerun.
func seedOfficers(ctx context.Context, pool *pgxpool.Pool, hash string) error {
	repo := account.NewPgRepository(pool)
	now := time.Now().UTC()

	type officer struct {
		email string
		role  auth.Role
		dept  department.ID
	}
	officers := []officer{{email: "admin@govcenter.lk", role: auth.RoleAdmin}}
	for _, d := range department.All {
		officers = append(officers, officer{email: string(d) + ".staff@govcenter.lk", role: auth.RoleStaff, dept: d})
	}

	for _, o := range officers {
		id := account.Identity{UserID: uuid.New(), Email: o.email, PasswordHash: hash, Role: o.role, CreatedAt: now}
		err := repo.CreateOfficer(ctx, id, account.Officer{
			UserID:                  id.UserID,
			Email:                   o.email,
			Name:                    gofakeit.Name(),
			Role:                    o.role,
			Department:              string(o.dept),
			Phone:                   gofakeit.Phone(),
			IsActive:                true,
			NotificationPreferences: account.DefaultPreferences(),
			CreatedAt:               now,
			UpdatedAt:               now,
		})
		if errors.Is(err, account.ErrEmailTaken) {
			logger.Info("officer exists, skipping", "email", o.email)
			continue
		}
		if err != nil {
			return err
		}
	}
	logger.Info("officers seeded", "count", len(officers))
	return nil
}

func seedCitizens(ctx context.Context, pool *pgxpool.Pool, count int, hash string) error {
	logger.Info("seeding citizens", "count", count)

	prefs, err := json.Marshal(account.DefaultPreferences())
	if err != nil {
		return err
	}
	bloodGroups := []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	run := time.Now().Unix()
	seen := make(map[string]struct{}, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		b := &pgx.Batch{}
		for i := offset; i < end; i++ {
			var nic string
			for {
				nic = gofakeit.Numerify("############")
				if _, dup := seen[nic]; !dup {
					break
				}
			}
			seen[nic] = struct{}{}

			first, last := gofakeit.FirstName(), gofakeit.LastName()
			email := strings.ToLower(fmt.Sprintf("%s.%s.%d.%d@example.lk", first, last, run, i))
			userID := uuid.New()
			dob := gofakeit.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC))

			b.Queue(`
				INSERT INTO identities (user_id, email, password_hash, role)
				VALUES ($1, $2, $3, $4)
			`, userID, email, hash, auth.RoleCitizen)
			b.Queue(`
				INSERT INTO citizens (
					nic, user_id, full_name, email, phone_number, blood_group,
					address_line1, city, date_of_birth, gender, notification_preferences
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			`, nic, userID, first+" "+last, email, gofakeit.Phone(),
				bloodGroups[gofakeit.Number(0, len(bloodGroups)-1)],
				gofakeit.Street(), gofakeit.City(), dob, strings.ToLower(gofakeit.Gender()), prefs)
		}

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			return tx.SendBatch(ctx, b).Close()
		})
		if err != nil {
			return fmt.Errorf("citizens %d-%d: %w", offset, end, err)
		}
		logger.Info("citizens seeded", "done", end, "total", count)
	}
	return nil
}

// seedSlots opens 30 minute slots from 09:00 to 16:00 for each department on
// each of the next days days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, days int) error {
	now := time.Now().UTC()
	var all []slot.TimeSlot
	for d := 1; d <= days; d++ {
		date := now.AddDate(0, 0, d).Format(slot.DateLayout)
		for _, dept := range department.All {
			built, err := slot.BuildSlots(dept, slot.GenerateRequest{
				Date:            date,
				StartTime:       "09:00",
				EndTime:         "16:00",
				DurationMinutes: 30,
			}, now)
			if err != nil {
				return err
			}
			all = append(all, built...)
		}
	}
	logger.Info("seeding time slots", "count", len(all))

	for offset := 0; offset < len(all); offset += batchSize {
		chunk := all[offset:min(offset+batchSize, len(all))]
		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			return slot.NewPgRepository(tx).CreateMany(ctx, chunk)
		})
		if err != nil {
			return err
		}
	}
	logger.Info("time slots seeded")
	return nil
}
