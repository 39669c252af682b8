package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/reward"
	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ---------------------------------------------------------
// USERS
// ---------------------------------------------------------

const userColumns = `id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at`

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.ImageURL, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	query := `
		INSERT INTO users (clerk_id, email, username, first_name, last_name, image_url, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (clerk_id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			image_url = EXCLUDED.image_url,
			email_verified = EXCLUDED.email_verified,
			updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, req.ClerkID, req.Email, req.Username,
		req.FirstName, req.LastName, req.ImageURL, req.EmailVerified))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------
// CHALLENGES
// ---------------------------------------------------------

const challengeSelect = `
	SELECT c.id, c.title, c.description, c.points, c.badge_id, c.badge_image_url, c.categories,
		   c.start_date, c.end_date, c.status, c.created_at,
		   COALESCE(array_agg(ce.experience_id::text) FILTER (WHERE ce.experience_id IS NOT NULL), '{}')
	FROM challenges c
	LEFT JOIN challenge_experiences ce ON ce.challenge_id = c.id
`

func parseUUIDs(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid experience id %q: %w", raw, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func scanChallenge(row rowScanner) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	var experienceIDs []string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Points, &c.BadgeID, &c.BadgeImageURL,
		&c.Categories, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedAt, &experienceIDs)
	if err != nil {
		return nil, err
	}
	if c.ExperienceIDs, err = parseUUIDs(experienceIDs); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	categories := c.Categories
	if categories == nil {
		categories = []string{}
	}

	query := `
		INSERT INTO challenges (id, title, description, points, badge_id, categories, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query, c.ID, c.Title, c.Description, c.Points, c.BadgeID,
		categories, c.StartDate, c.EndDate, c.Status).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}

	for _, expID := range c.ExperienceIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO challenge_experiences (challenge_id, experience_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.ID, expID)
		if err != nil {
			return fmt.Errorf("failed to link experience %s: %w", expID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx, challengeSelect+` WHERE c.id = $1 GROUP BY c.id`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChallenges(ctx context.Context, status challenge.Status) ([]*challenge.Challenge, error) {
	query := challengeSelect + ` WHERE ($1 = '' OR c.status = $1) GROUP BY c.id ORDER BY c.end_date ASC`

	rows, err := s.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := []*challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func (s *PostgresStore) SetBadgeImage(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := s.db.Exec(ctx, `UPDATE challenges SET badge_image_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("failed to set badge image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EndExpiredChallenges(ctx context.Context, now time.Time) ([]*challenge.Challenge, []*challenge.Participation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE challenges SET status = 'ENDED'
		WHERE status = 'ACTIVE' AND end_date < $1
		RETURNING id, title, points, badge_id, end_date`, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to end challenges: %w", err)
	}

	var ended []*challenge.Challenge
	for rows.Next() {
		c := &challenge.Challenge{Status: challenge.StatusEnded}
		if err := rows.Scan(&c.ID, &c.Title, &c.Points, &c.BadgeID, &c.EndDate); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan ended challenge: %w", err)
		}
		ended = append(ended, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var failed []*challenge.Participation
	for _, c := range ended {
		prows, err := tx.Query(ctx, `
			UPDATE challenge_participations SET status = 'FAILED', updated_at = NOW()
			WHERE challenge_id = $1 AND status = 'IN_PROGRESS'
			RETURNING `+participationColumns, c.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fail participations for %s: %w", c.ID, err)
		}
		for prows.Next() {
			p, err := scanParticipation(prows)
			if err != nil {
				prows.Close()
				return nil, nil, fmt.Errorf("failed to scan participation: %w", err)
			}
			failed = append(failed, p)
		}
		prows.Close()
		if err := prows.Err(); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ended, failed, nil
}

// ---------------------------------------------------------
// PARTICIPATIONS
// ---------------------------------------------------------

const participationColumns = `id, user_id, challenge_id, progress, status, points_earned, completed_at, joined_at, updated_at`

func scanParticipation(row rowScanner) (*challenge.Participation, error) {
	p := &challenge.Participation{}
	err := row.Scan(&p.ID, &p.UserID, &p.ChallengeID, &p.Progress, &p.Status,
		&p.PointsEarned, &p.CompletedAt, &p.JoinedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreateParticipation(ctx context.Context, p *challenge.Participation) error {
	query := `
		INSERT INTO challenge_participations (id, user_id, challenge_id, progress, status, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING joined_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, p.ID, p.UserID, p.ChallengeID, p.Progress, p.Status, p.PointsEarned).
		Scan(&p.JoinedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create participation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error) {
	p, err := scanParticipation(s.db.QueryRow(ctx,
		`SELECT `+participationColumns+` FROM challenge_participations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) listParticipations(ctx context.Context, userID uuid.UUID, onlyInProgress bool) ([]*challenge.ParticipationWithChallenge, error) {
	query := `
		SELECT p.id, p.user_id, p.challenge_id, p.progress, p.status, p.points_earned,
			   p.completed_at, p.joined_at, p.updated_at,
			   c.id, c.title, c.description, c.points, c.badge_id, c.badge_image_url, c.categories,
			   c.start_date, c.end_date, c.status, c.created_at,
			   COALESCE(array_agg(ce.experience_id::text) FILTER (WHERE ce.experience_id IS NOT NULL), '{}')
		FROM challenge_participations p
		JOIN challenges c ON c.id = p.challenge_id
		LEFT JOIN challenge_experiences ce ON ce.challenge_id = c.id
		WHERE p.user_id = $1 AND (NOT $2 OR p.status = 'IN_PROGRESS')
		GROUP BY p.id, c.id
		ORDER BY p.joined_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID, onlyInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	result := []*challenge.ParticipationWithChallenge{}
	for rows.Next() {
		pc := &challenge.ParticipationWithChallenge{}
		var experienceIDs []string
		err := rows.Scan(
			&pc.ID, &pc.UserID, &pc.ChallengeID, &pc.Progress, &pc.Status, &pc.PointsEarned,
			&pc.CompletedAt, &pc.JoinedAt, &pc.UpdatedAt,
			&pc.Challenge.ID, &pc.Challenge.Title, &pc.Challenge.Description, &pc.Challenge.Points,
			&pc.Challenge.BadgeID, &pc.Challenge.BadgeImageURL, &pc.Challenge.Categories,
			&pc.Challenge.StartDate, &pc.Challenge.EndDate, &pc.Challenge.Status, &pc.Challenge.CreatedAt,
			&experienceIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		if pc.Challenge.ExperienceIDs, err = parseUUIDs(experienceIDs); err != nil {
			return nil, err
		}
		result = append(result, pc)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error) {
	return s.listParticipations(ctx, userID, false)
}

func (s *PostgresStore) ListInProgress(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error) {
	return s.listParticipations(ctx, userID, true)
}

func (s *PostgresStore) ApplyProgress(ctx context.Context, u *challenge.ProgressUpdate) (*reward.Reward, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if u.BookingID != nil {
		tag, err := tx.Exec(ctx, `
			INSERT INTO participation_progress_events (participation_id, booking_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, u.ParticipationID, *u.BookingID)
		if err != nil {
			return nil, fmt.Errorf("failed to record progress event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrAlreadyApplied
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE challenge_participations
		SET progress = $2, status = $3, points_earned = $4,
			completed_at = COALESCE(completed_at, $5), updated_at = NOW()
		WHERE id = $1 AND status = 'IN_PROGRESS' AND progress = $6`,
		u.ParticipationID, u.NewProgress, u.Status, u.PointsEarned, u.CompletedAt, u.ExpectedProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to update participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}

	var issued *reward.Reward
	if u.Reward != nil {
		issued = &reward.Reward{
			UserID:          u.UserID,
			ParticipationID: u.ParticipationID,
			ChallengeID:     u.Reward.ChallengeID,
			Type:            reward.TypeBadge,
			Title:           u.Reward.Title,
			Points:          u.Reward.Points,
			BadgeID:         u.Reward.BadgeID,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO rewards (user_id, participation_id, challenge_id, type, title, points, badge_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (participation_id) DO NOTHING
			RETURNING id, issued_at`,
			issued.UserID, issued.ParticipationID, issued.ChallengeID, issued.Type,
			issued.Title, issued.Points, issued.BadgeID,
		).Scan(&issued.ID, &issued.IssuedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("failed to insert reward: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit progress: %w", err)
	}
	return issued, nil
}

func (s *PostgresStore) ListRewards(ctx context.Context, userID uuid.UUID) ([]*reward.Reward, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, participation_id, challenge_id, type, title, points, badge_id, issued_at
		FROM rewards WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []*reward.Reward{}
	for rows.Next() {
		r := &reward.Reward{}
		if err := rows.Scan(&r.ID, &r.UserID, &r.ParticipationID, &r.ChallengeID, &r.Type,
			&r.Title, &r.Points, &r.BadgeID, &r.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

// ---------------------------------------------------------
// EXPERIENCES & BOOKINGS
// ---------------------------------------------------------

func (s *PostgresStore) CreateExperience(ctx context.Context, e *booking.Experience) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO experiences (id, title, category, price_cents, currency)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		e.ID, e.Title, e.Category, e.PriceCents, e.Currency).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create experience: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExperience(ctx context.Context, id uuid.UUID) (*booking.Experience, error) {
	e := &booking.Experience{}
	err := s.db.QueryRow(ctx, `
		SELECT id, title, category, price_cents, currency, created_at
		FROM experiences WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &e.Category, &e.PriceCents, &e.Currency, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get experience: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListExperiences(ctx context.Context, category string) ([]*booking.Experience, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, category, price_cents, currency, created_at
		FROM experiences WHERE ($1 = '' OR category = $1)
		ORDER BY title ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiences: %w", err)
	}
	defer rows.Close()

	experiences := []*booking.Experience{}
	for rows.Next() {
		e := &booking.Experience{}
		if err := rows.Scan(&e.ID, &e.Title, &e.Category, &e.PriceCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		experiences = append(experiences, e)
	}
	return experiences, rows.Err()
}

const bookingColumns = `id, user_id, experience_id, category, amount_cents, currency, status, payment_provider, payment_ref, confirmed_at, created_at`

func scanBooking(row rowScanner) (*booking.Booking, error) {
	b := &booking.Booking{}
	err := row.Scan(&b.ID, &b.UserID, &b.ExperienceID, &b.Category, &b.AmountCents, &b.Currency,
		&b.Status, &b.PaymentProvider, &b.PaymentRef, &b.ConfirmedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) CreateBooking(ctx context.Context, b *booking.Booking) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, experience_id, category, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		b.ID, b.UserID, b.ExperienceID, b.Category, b.AmountCents, b.Currency, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) SetPaymentRef(ctx context.Context, id uuid.UUID, provider booking.Provider, ref string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings SET payment_provider = $2, payment_ref = $3
		WHERE id = $1 AND status = 'PENDING'`, id, provider, ref)
	if err != nil {
		return fmt.Errorf("failed to set payment ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) ConfirmBooking(ctx context.Context, id uuid.UUID, p *booking.Payment) (*booking.Booking, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'CONFIRMED', payment_provider = $2, payment_ref = $3, confirmed_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+bookingColumns, id, p.Provider, p.ProviderRef))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, false, ErrNotFound
			}
			return nil, false, fmt.Errorf("failed to load booking: %w", err)
		}
		if existing.Status == booking.StatusConfirmed {
			return existing, false, nil
		}
		return existing, false, ErrConflict
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to confirm booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (booking_id, provider, provider_ref, amount_cents, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO NOTHING`,
		b.ID, p.Provider, p.ProviderRef, b.AmountCents, b.Currency)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit booking: %w", err)
	}
	return b, true, nil
}

func (s *PostgresStore) CancelBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `
		UPDATE bookings SET status = 'CANCELLED'
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+bookingColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	return b, nil
}

// ---------------------------------------------------------
// NOTIFICATIONS
// ---------------------------------------------------------

const notificationColumns = `id, user_id, type, priority, status, title, body, data, sent_at, read_at, failure_reason, created_at`

func scanNotification(row rowScanner) (*notification.Notification, error) {
	n := &notification.Notification{}
	var data []byte
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Priority, &n.Status, &n.Title, &n.Body,
		&data, &n.SentAt, &n.ReadAt, &n.FailureReason, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}
	return n, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *notification.Notification) error {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, priority, status, title, body, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Priority, n.Status, n.Title, n.Body, dataJSON).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	offset := (page - 1) * pageSize

	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, userID, unreadOnly, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	resp := &notification.NotificationListResponse{
		Notifications: []*notification.Notification{},
		Page:          page,
		PageSize:      pageSize,
	}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		resp.Notifications = append(resp.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE read_at IS NULL)
		FROM notifications WHERE user_id = $1`, userID).Scan(&resp.TotalCount, &resp.UnreadCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	return resp, nil
}

func (s *PostgresStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read_at = NOW(), status = 'read'
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET read_at = NOW(), status = 'read'
		WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, notificationID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = NOW()
		WHERE id = $1 AND status = 'pending'`, notificationID)
	return err
}

func (s *PostgresStore) MarkFailed(ctx context.Context, notificationID uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'pending'`, notificationID, reason)
	return err
}

func (s *PostgresStore) RegisterDevice(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform, updated_at = NOW()`,
		userID, token.Token, token.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

var _ Gateway = (*PostgresStore)(nil)
