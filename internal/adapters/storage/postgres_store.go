package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

// PostgresStore implements ports.Storage for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL storage instance
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	// In production, should be set based on workload
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates database tables if they don't exist
// In production, use proper migration tools
func (s *PostgresStore) InitSchema() error {
	schema := `
	-- ============================================================================
	-- EMAILS TABLE
	-- ============================================================================
	-- One row per analyzed email, keyed by the caller-supplied id.
	--
	-- The analyzed record is immutable after insert and kept whole in "document".
	-- Fields filled in later (risk assessment, WHOIS enrichment, profile flag)
	-- live in their own columns and are overlaid on read.
	--
	-- sender/receiver/timestamp/safebrowsing_flag/suspicious_url_count are
	-- projections of the document for filtering and dashboard aggregates.

	CREATE TABLE IF NOT EXISTS emails (
		record_id UUID PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		sender_address VARCHAR(254),
		sender_domain VARCHAR(253),
		receiver_address VARCHAR(254),
		receiver_domain VARCHAR(253),
		timestamp TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		safebrowsing_flag BOOLEAN NOT NULL DEFAULT FALSE,
		suspicious_url_count INTEGER NOT NULL DEFAULT 0,
		document JSONB NOT NULL,
		risk_score INTEGER,
		risk JSONB,
		sender_profile_processed BOOLEAN NOT NULL DEFAULT FALSE,
		profile_attempts INTEGER NOT NULL DEFAULT 0,
		profile_next_attempt_at TIMESTAMPTZ,
		whois_data JSONB,
		whois_last_updated TIMESTAMPTZ
	);

	-- Backfill bookkeeping, for tables created before it existed
	ALTER TABLE emails ADD COLUMN IF NOT EXISTS profile_attempts INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE emails ADD COLUMN IF NOT EXISTS profile_next_attempt_at TIMESTAMPTZ;

	CREATE INDEX IF NOT EXISTS idx_emails_sender_address ON emails(sender_address);
	CREATE INDEX IF NOT EXISTS idx_emails_sender_domain ON emails(sender_domain);
	CREATE INDEX IF NOT EXISTS idx_emails_receiver_address ON emails(receiver_address);
	CREATE INDEX IF NOT EXISTS idx_emails_receiver_domain ON emails(receiver_domain);
	-- Dashboard windows and daily buckets
	CREATE INDEX IF NOT EXISTS idx_emails_timestamp ON emails(timestamp DESC);
	-- Backfill scans
	CREATE INDEX IF NOT EXISTS idx_emails_profile_pending ON emails(COALESCE(profile_next_attempt_at, processed_at)) WHERE NOT sender_profile_processed;
	CREATE INDEX IF NOT EXISTS idx_emails_risk_pending ON emails(processed_at) WHERE risk IS NULL;

	-- ============================================================================
	-- SENDER_PROFILES TABLE
	-- ============================================================================
	-- Aggregate per sender address. Counters are only ever incremented in place
	-- (col = col + delta) so concurrent writers for one sender never lose updates.
	--
	-- emails is an append-only JSONB array of entry summaries. It grows without
	-- bound; a dedicated sender_emails table would be needed at high volume.

	CREATE TABLE IF NOT EXISTS sender_profiles (
		id UUID PRIMARY KEY,
		sender_address VARCHAR(254) NOT NULL UNIQUE,
		sender_domain VARCHAR(253),
		sender JSONB NOT NULL,
		emails JSONB NOT NULL DEFAULT '[]'::jsonb,
		total_emails INTEGER NOT NULL DEFAULT 0,
		suspicious_emails INTEGER NOT NULL DEFAULT 0,
		suspicious_link_count INTEGER NOT NULL DEFAULT 0,
		phishing_link_count INTEGER NOT NULL DEFAULT 0,
		unwanted_software_count INTEGER NOT NULL DEFAULT 0,
		suspicious_keyword_count INTEGER NOT NULL DEFAULT 0,
		last_authentication JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sender_profiles_domain ON sender_profiles(sender_domain);
	CREATE INDEX IF NOT EXISTS idx_sender_profiles_updated ON sender_profiles(last_updated DESC);

	-- ============================================================================
	-- WHOIS TABLE
	-- ============================================================================
	-- Registration data keyed by registrable domain (eTLD+1), never by FQDN.

	CREATE TABLE IF NOT EXISTS whois (
		domain VARCHAR(253) PRIMARY KEY,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_whois_created ON whois(created_at DESC);

	-- ============================================================================
	-- DOMAIN_AUTHENTICATION TABLE
	-- ============================================================================
	-- History of SPF/DKIM/DMARC resolutions. Readers take the newest row and
	-- check its age against the TTL; old rows are never updated.

	CREATE TABLE IF NOT EXISTS domain_authentication (
		id BIGSERIAL PRIMARY KEY,
		domain VARCHAR(253) NOT NULL,
		authentication JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_domain_auth_domain_created ON domain_authentication(domain, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// InsertEmail inserts a record unless one with the same external id exists
func (s *PostgresStore) InsertEmail(ctx context.Context, record *domain.EmailRecord) (uuid.UUID, bool, error) {
	if record.RecordID == uuid.Nil {
		record.RecordID = uuid.New()
	}

	// Mutable fields are stored in their own columns
	doc := *record
	doc.Risk = nil
	doc.Sender.WhoisData = nil
	doc.WhoisLastUpdated = nil
	doc.SenderProfileProcessed = false

	documentJSON, err := json.Marshal(doc)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to marshal email document: %w", err)
	}

	riskJSON, riskScore, err := marshalRisk(record.Risk)
	if err != nil {
		return uuid.Nil, false, err
	}

	query := `
		INSERT INTO emails (
			record_id, id, sender_address, sender_domain, receiver_address, receiver_domain,
			timestamp, processed_at, safebrowsing_flag, suspicious_url_count,
			document, risk_score, risk, sender_profile_processed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE)
		ON CONFLICT (id) DO NOTHING
		RETURNING record_id
	`
	var recordID uuid.UUID
	err = s.db.QueryRowContext(ctx, query,
		record.RecordID, record.ID, record.Sender.Address, record.Sender.Domain,
		record.Receiver.Address, record.Receiver.Domain,
		record.Timestamp, record.ProcessedAt, record.Flags.SafeBrowsingFlag, suspiciousURLCount(record),
		documentJSON, riskScore, riskJSON,
	).Scan(&recordID)
	if err == nil {
		return recordID, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("failed to insert email: %w", err)
	}

	// Conflict: return the identity of the record already stored
	err = s.db.QueryRowContext(ctx, `SELECT record_id FROM emails WHERE id = $1`, record.ID).Scan(&recordID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to read existing email: %w", err)
	}
	return recordID, false, nil
}

const emailColumns = `document, risk, sender_profile_processed, whois_data, whois_last_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*domain.EmailRecord, error) {
	var documentJSON, riskJSON, whoisJSON []byte
	var processed bool
	var whoisUpdated sql.NullTime

	if err := row.Scan(&documentJSON, &riskJSON, &processed, &whoisJSON, &whoisUpdated); err != nil {
		return nil, err
	}

	record := &domain.EmailRecord{}
	if err := json.Unmarshal(documentJSON, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email document: %w", err)
	}
	if len(riskJSON) > 0 {
		var risk domain.RiskAssessment
		if err := json.Unmarshal(riskJSON, &risk); err != nil {
			return nil, fmt.Errorf("failed to unmarshal risk assessment: %w", err)
		}
		record.Risk = &risk
	}
	record.SenderProfileProcessed = processed
	if len(whoisJSON) > 0 {
		record.Sender.WhoisData = json.RawMessage(whoisJSON)
	}
	if whoisUpdated.Valid {
		t := whoisUpdated.Time
		record.WhoisLastUpdated = &t
	}
	return record, nil
}

// GetEmail retrieves an email by its external id
func (s *PostgresStore) GetEmail(ctx context.Context, id string) (*domain.EmailRecord, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`

	record, err := scanEmail(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// UpdateRiskAssessment stores a computed risk assessment
func (s *PostgresStore) UpdateRiskAssessment(ctx context.Context, id string, risk domain.RiskAssessment) error {
	riskJSON, score, err := marshalRisk(&risk)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET risk = $2, risk_score = $3 WHERE id = $1`, id, riskJSON, score)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// GetEmailsMissingRisk retrieves emails that were stored without a risk assessment
func (s *PostgresStore) GetEmailsMissingRisk(ctx context.Context, limit int) ([]domain.EmailRecord, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE risk IS NULL
		ORDER BY processed_at ASC
		LIMIT $1
	`
	return s.queryEmails(ctx, query, limit)
}

// ClaimEmailsPendingProfile leases emails whose sender profile update has not succeeded.
// Rows are locked with SKIP LOCKED so concurrent backfill passes never claim the same email,
// and each claim pushes profile_next_attempt_at back exponentially so failing rows
// go to the end of the queue.
func (s *PostgresStore) ClaimEmailsPendingProfile(ctx context.Context, claim ports.ProfileClaim) ([]domain.EmailRecord, error) {
	query := `
		WITH due AS (
			SELECT id AS due_id, profile_attempts AS prior_attempts
			FROM emails
			WHERE NOT sender_profile_processed
			  AND processed_at <= $2
			  AND (profile_next_attempt_at IS NULL OR profile_next_attempt_at <= $1)
			ORDER BY COALESCE(profile_next_attempt_at, processed_at) ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE emails
		SET profile_attempts = due.prior_attempts + 1,
		    profile_next_attempt_at = $1::timestamptz
		        + LEAST($4::float8 * power(2, due.prior_attempts), $5::float8) * INTERVAL '1 second'
		FROM due
		WHERE emails.id = due.due_id
		RETURNING ` + emailColumns + `
	`
	return s.queryEmails(ctx, query,
		claim.Now, claim.Now.Add(-claim.Grace), claim.Limit,
		claim.RetryBase.Seconds(), claim.MaxRetryDelay().Seconds(),
	)
}

func (s *PostgresStore) queryEmails(ctx context.Context, query string, args ...any) ([]domain.EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]domain.EmailRecord, 0)
	for rows.Next() {
		record, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *record)
	}

	return emails, rows.Err()
}

// MarkSenderProfileProcessed flags that an email has been folded into its sender profile
func (s *PostgresStore) MarkSenderProfileProcessed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET sender_profile_processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// SetSenderWhois attaches WHOIS data to a stored email
func (s *PostgresStore) SetSenderWhois(ctx context.Context, id string, data json.RawMessage, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET whois_data = $2, whois_last_updated = $3 WHERE id = $1`,
		id, []byte(data), at,
	)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// UpsertSenderProfile creates or extends the profile of the record's sender
func (s *PostgresStore) UpsertSenderProfile(ctx context.Context, record *domain.EmailRecord, entry domain.EmailEntry, delta domain.SecurityMetrics) error {
	senderJSON, err := json.Marshal(record.Sender)
	if err != nil {
		return fmt.Errorf("failed to marshal sender: %w", err)
	}
	entriesJSON, err := json.Marshal([]domain.EmailEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to marshal email entry: %w", err)
	}
	authJSON, err := json.Marshal(record.Authentication)
	if err != nil {
		return fmt.Errorf("failed to marshal authentication: %w", err)
	}

	query := `
		INSERT INTO sender_profiles (
			id, sender_address, sender_domain, sender, emails,
			total_emails, suspicious_emails, suspicious_link_count,
			phishing_link_count, unwanted_software_count, suspicious_keyword_count,
			last_authentication, created_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (sender_address) DO UPDATE
		SET sender = EXCLUDED.sender,
		    emails = sender_profiles.emails || EXCLUDED.emails,
		    total_emails = sender_profiles.total_emails + EXCLUDED.total_emails,
		    suspicious_emails = sender_profiles.suspicious_emails + EXCLUDED.suspicious_emails,
		    suspicious_link_count = sender_profiles.suspicious_link_count + EXCLUDED.suspicious_link_count,
		    phishing_link_count = sender_profiles.phishing_link_count + EXCLUDED.phishing_link_count,
		    unwanted_software_count = sender_profiles.unwanted_software_count + EXCLUDED.unwanted_software_count,
		    suspicious_keyword_count = sender_profiles.suspicious_keyword_count + EXCLUDED.suspicious_keyword_count,
		    last_authentication = EXCLUDED.last_authentication,
		    last_updated = EXCLUDED.last_updated
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.New(), record.Sender.Address, record.Sender.Domain, senderJSON, entriesJSON,
		delta.TotalEmails, delta.SuspiciousEmails, delta.SuspiciousLinkCount,
		delta.PhishingLinkCount, delta.UnwantedSoftwareCount, delta.SuspiciousKeywordCount,
		authJSON, time.Now(),
	)
	return err
}

// GetSenderProfile retrieves a sender profile by address
func (s *PostgresStore) GetSenderProfile(ctx context.Context, address string) (*domain.SenderProfile, error) {
	query := `
		SELECT id, sender, emails,
		       total_emails, suspicious_emails, suspicious_link_count,
		       phishing_link_count, unwanted_software_count, suspicious_keyword_count,
		       last_authentication, created_at, last_updated
		FROM sender_profiles
		WHERE sender_address = $1
	`
	profile := &domain.SenderProfile{}
	var senderJSON, entriesJSON, authJSON []byte
	m := &profile.SecurityMetrics

	err := s.db.QueryRowContext(ctx, query, address).Scan(
		&profile.ID, &senderJSON, &entriesJSON,
		&m.TotalEmails, &m.SuspiciousEmails, &m.SuspiciousLinkCount,
		&m.PhishingLinkCount, &m.UnwantedSoftwareCount, &m.SuspiciousKeywordCount,
		&authJSON, &profile.CreatedAt, &profile.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(senderJSON, &profile.Sender); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sender: %w", err)
	}
	if err := json.Unmarshal(entriesJSON, &profile.Emails); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email entries: %w", err)
	}
	if len(authJSON) > 0 {
		if err := json.Unmarshal(authJSON, &profile.LastAuthentication); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authentication: %w", err)
		}
	}

	return profile, nil
}

// GetWhois retrieves cached WHOIS data for a registrable domain
func (s *PostgresStore) GetWhois(ctx context.Context, rootDomain string) (*domain.WhoisRecord, error) {
	record := &domain.WhoisRecord{}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT domain, data, created_at FROM whois WHERE domain = $1`, rootDomain,
	).Scan(&record.Domain, &data, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Data = json.RawMessage(data)
	return record, nil
}

// UpsertWhois stores WHOIS data, replacing any previous entry for the domain
func (s *PostgresStore) UpsertWhois(ctx context.Context, record *domain.WhoisRecord) error {
	query := `
		INSERT INTO whois (domain, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain) DO UPDATE
		SET data = EXCLUDED.data,
		    created_at = EXCLUDED.created_at
	`
	_, err := s.db.ExecContext(ctx, query, record.Domain, []byte(record.Data), record.CreatedAt)
	return err
}

// GetDomainAuthentication retrieves the newest resolution for a domain
func (s *PostgresStore) GetDomainAuthentication(ctx context.Context, name string) (*domain.DomainAuthentication, error) {
	query := `
		SELECT authentication, created_at
		FROM domain_authentication
		WHERE domain = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var authJSON []byte
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query, name).Scan(&authJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	auth := &domain.DomainAuthentication{}
	if err := json.Unmarshal(authJSON, auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal domain authentication: %w", err)
	}
	auth.Domain = name
	auth.CreatedAt = createdAt
	return auth, nil
}

// SaveDomainAuthentication appends a resolution for a domain
func (s *PostgresStore) SaveDomainAuthentication(ctx context.Context, auth *domain.DomainAuthentication) error {
	authJSON, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal domain authentication: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO domain_authentication (domain, authentication, created_at) VALUES ($1, $2, $3)`,
		auth.Domain, authJSON, auth.CreatedAt,
	)
	return err
}

// GetEmailStats aggregates emails whose timestamp is in [from, to)
func (s *PostgresStore) GetEmailStats(ctx context.Context, from, to time.Time) (domain.EmailStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE safebrowsing_flag),
		       COALESCE(SUM(suspicious_url_count), 0),
		       COALESCE(AVG(risk_score), 0)
		FROM emails
		WHERE timestamp >= $1 AND timestamp < $2
	`
	var stats domain.EmailStats
	err := s.db.QueryRowContext(ctx, query, from, to).Scan(
		&stats.TotalEmails, &stats.FlaggedEmails, &stats.URLCount, &stats.AverageRiskScore,
	)
	return stats, err
}

// GetDailyStats buckets emails in [from, to) by UTC day
func (s *PostgresStore) GetDailyStats(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error) {
	query := `
		SELECT to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE safebrowsing_flag)
		FROM emails
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.DailyStat, 0)
	for rows.Next() {
		var day domain.DailyStat
		if err := rows.Scan(&day.Date, &day.TotalEmails, &day.FlaggedEmails); err != nil {
			return nil, err
		}
		stats = append(stats, day)
	}

	return stats, rows.Err()
}

// A nil assessment is written as SQL NULL in both columns
func marshalRisk(risk *domain.RiskAssessment) (any, sql.NullInt64, error) {
	if risk == nil {
		return nil, sql.NullInt64{}, nil
	}
	riskJSON, err := json.Marshal(risk)
	if err != nil {
		return nil, sql.NullInt64{}, fmt.Errorf("failed to marshal risk assessment: %w", err)
	}
	return riskJSON, sql.NullInt64{Int64: int64(risk.Score), Valid: true}, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("email %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

func suspiciousURLCount(record *domain.EmailRecord) int {
	n := 0
	for _, u := range record.ExtractedURLs {
		if u.Suspicious {
			n++
		}
	}
	return n
}
