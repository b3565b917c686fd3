package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	txcontext "github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/tx"
)

// PostgresStore reads and writes the compliance-owned columns of the shared
// contacts table. Every UPDATE lists its columns explicitly; the engine never
// issues a whole-row write against a record it does not own.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const contactColumns = `
	id, tenant_id, phone_number, timezone,
	call_opted_out, call_opt_out_at, call_opt_out_reason, call_opt_out_source,
	call_consent, call_consent_method, call_consent_at, call_consent_by,
	call_consent_ip, call_consent_user_agent, call_consent_ua_summary,
	call_consent_form_version, call_consent_disclosed_text,
	sms_opted_out, sms_opt_out_at, sms_opt_out_reason, sms_opt_out_source,
	sms_consent, sms_consent_method, sms_consent_at, sms_consent_by,
	sms_consent_ip, sms_consent_user_agent, sms_consent_ua_summary,
	sms_consent_form_version, sms_consent_disclosed_text,
	dnc_status, dnc_source`

func (s *PostgresStore) Get(ctx context.Context, tenant, contactID string) (*Record, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND id = $2`
	record, err := s.scanRecord(s.execer(ctx).QueryRowContext(ctx, query, tenant, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, tenant, canonicalPhone string) (*Record, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND phone_number = $2 LIMIT 1`
	record, err := s.scanRecord(s.execer(ctx).QueryRowContext(ctx, query, tenant, canonicalPhone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact by phone: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact by phone: %w", err)
	}
	return record, nil
}

// SetChannelOptOut writes the opt-out fields and clears consent on the same
// channel in one statement, keeping the mutual-exclusion invariant atomic.
func (s *PostgresStore) SetChannelOptOut(ctx context.Context, tenant, contactID string, ch Channel, update OptOutUpdate) error {
	prefix, err := columnPrefix(ch)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE contacts SET
			%[1]s_opted_out = TRUE,
			%[1]s_opt_out_at = $3,
			%[1]s_opt_out_reason = $4,
			%[1]s_opt_out_source = $5,
			%[1]s_consent = 'none',
			%[1]s_consent_method = NULL,
			%[1]s_consent_at = NULL,
			%[1]s_consent_by = NULL,
			%[1]s_consent_ip = NULL,
			%[1]s_consent_user_agent = NULL,
			%[1]s_consent_ua_summary = NULL,
			%[1]s_consent_form_version = NULL,
			%[1]s_consent_disclosed_text = NULL
		WHERE tenant_id = $1 AND id = $2`, prefix)
	return s.execOne(ctx, "set channel opt-out", query,
		tenant, contactID, update.At, update.Reason, update.Source)
}

// SetChannelConsent writes consent proof and clears the opt-out fields on the
// same channel in one statement.
func (s *PostgresStore) SetChannelConsent(ctx context.Context, tenant, contactID string, ch Channel, proof Proof) error {
	prefix, err := columnPrefix(ch)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE contacts SET
			%[1]s_consent = 'explicit',
			%[1]s_consent_method = $3,
			%[1]s_consent_at = $4,
			%[1]s_consent_by = $5,
			%[1]s_consent_ip = $6,
			%[1]s_consent_user_agent = $7,
			%[1]s_consent_ua_summary = $8,
			%[1]s_consent_form_version = $9,
			%[1]s_consent_disclosed_text = $10,
			%[1]s_opted_out = FALSE,
			%[1]s_opt_out_at = NULL,
			%[1]s_opt_out_reason = NULL,
			%[1]s_opt_out_source = NULL
		WHERE tenant_id = $1 AND id = $2`, prefix)
	return s.execOne(ctx, "set channel consent", query,
		tenant, contactID, string(proof.Method), proof.CapturedAt, proof.CapturedBy,
		proof.IPAddress, proof.UserAgent, proof.UserAgentSummary,
		proof.FormVersion, proof.DisclosedText)
}

func (s *PostgresStore) SetDNCStatus(ctx context.Context, tenant, contactID, status, source string) error {
	query := `UPDATE contacts SET dnc_status = $3, dnc_source = $4 WHERE tenant_id = $1 AND id = $2`
	return s.execOne(ctx, "set dnc status", query, tenant, contactID, status, source)
}

func (s *PostgresStore) ClearDNCStatusIf(ctx context.Context, tenant, contactID, ifSource string) error {
	// Conditional on the current source so an internal removal never clears a
	// mirror set by a federal or state listing. Zero rows updated is fine.
	query := `
		UPDATE contacts SET dnc_status = '', dnc_source = ''
		WHERE tenant_id = $1 AND id = $2 AND dnc_source = $3`
	if _, err := s.execer(ctx).ExecContext(ctx, query, tenant, contactID, ifSource); err != nil {
		return fmt.Errorf("clear dnc status: %w", err)
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}

func columnPrefix(ch Channel) (string, error) {
	switch ch {
	case ChannelCall:
		return "call", nil
	case ChannelSMS:
		return "sms", nil
	default:
		return "", fmt.Errorf("channel %q: %w", ch, sentinel.ErrInvalidState)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanRecord(row rowScanner) (*Record, error) {
	var (
		record   Record
		call     channelRow
		sms      channelRow
		timezone sql.NullString
	)
	err := row.Scan(
		&record.ID, &record.Tenant, &record.Phone, &timezone,
		&call.optedOut, &call.optOutAt, &call.optOutReason, &call.optOutSource,
		&call.consent, &call.method, &call.capturedAt, &call.capturedBy,
		&call.ip, &call.userAgent, &call.uaSummary, &call.formVersion, &call.disclosedText,
		&sms.optedOut, &sms.optOutAt, &sms.optOutReason, &sms.optOutSource,
		&sms.consent, &sms.method, &sms.capturedAt, &sms.capturedBy,
		&sms.ip, &sms.userAgent, &sms.uaSummary, &sms.formVersion, &sms.disclosedText,
		&record.DNCStatus, &record.DNCSource,
	)
	if err != nil {
		return nil, err
	}
	record.Timezone = timezone.String
	record.Call = call.toState()
	record.SMS = sms.toState()
	return &record, nil
}

type channelRow struct {
	optedOut      bool
	optOutAt      sql.NullTime
	optOutReason  sql.NullString
	optOutSource  sql.NullString
	consent       sql.NullString
	method        sql.NullString
	capturedAt    sql.NullTime
	capturedBy    sql.NullString
	ip            sql.NullString
	userAgent     sql.NullString
	uaSummary     sql.NullString
	formVersion   sql.NullString
	disclosedText sql.NullString
}

func (r channelRow) toState() ChannelState {
	state := ChannelState{
		OptedOut:     r.optedOut,
		OptOutReason: r.optOutReason.String,
		OptOutSource: r.optOutSource.String,
		Consent:      ConsentNone,
	}
	if r.optOutAt.Valid {
		at := r.optOutAt.Time
		state.OptOutAt = &at
	}
	if r.consent.Valid && r.consent.String == string(ConsentExplicit) {
		state.Consent = ConsentExplicit
		state.Proof = &Proof{
			Method:           CaptureMethod(r.method.String),
			CapturedBy:       r.capturedBy.String,
			IPAddress:        r.ip.String,
			UserAgent:        r.userAgent.String,
			UserAgentSummary: r.uaSummary.String,
			FormVersion:      r.formVersion.String,
			DisclosedText:    r.disclosedText.String,
		}
		if r.capturedAt.Valid {
			state.Proof.CapturedAt = r.capturedAt.Time.UTC()
		}
	}
	return state
}
