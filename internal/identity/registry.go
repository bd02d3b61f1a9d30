// ABOUTME: Identity Registry: per-thread identities and the verification state machine
// ABOUTME: Verification codes are single-use, bcrypt-hashed, and expire after a fixed TTL

package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-identity/internal/store"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultCodeTTL    = 15 * time.Minute
	DefaultCodeLength = 6
)

// ErrAlreadyVerified is returned by RequestVerification for an identity
// that is already verified. It wraps store.ErrNotFound: a verified
// identity has no verification flow left to find.
var ErrAlreadyVerified = fmt.Errorf("%w: identity already verified", store.ErrNotFound)

// Config contains configuration options for the Registry.
type Config struct {
	Store      store.Store
	Logger     *slog.Logger
	Now        func() time.Time
	CodeTTL    time.Duration
	CodeLength int
	BcryptCost int
}

// Registry owns identity records and their verification transitions.
type Registry struct {
	store      store.Store
	logger     *slog.Logger
	now        func() time.Time
	codeTTL    time.Duration
	codeLength int
	bcryptCost int
}

// NewRegistry creates a new Registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.CodeTTL
	if ttl == 0 {
		ttl = DefaultCodeTTL
	}
	length := cfg.CodeLength
	if length == 0 {
		length = DefaultCodeLength
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Registry{
		store:      cfg.Store,
		logger:     logger.With("component", "identity"),
		now:        func() time.Time { return now().UTC() },
		codeTTL:    ttl,
		codeLength: length,
		bcryptCost: cost,
	}
}

// CreateIdentity creates an anonymous identity for a new thread.
// Returns store.ErrConflict if the thread already has one.
func (r *Registry) CreateIdentity(ctx context.Context, channel, threadID string) (*store.Identity, error) {
	channel = strings.TrimSpace(channel)
	threadID = strings.TrimSpace(threadID)
	if channel == "" || threadID == "" {
		return nil, fmt.Errorf("%w: channel and thread id are required", store.ErrValidation)
	}

	ident := &store.Identity{
		ID:                 NewIdentityID(channel),
		Channel:            channel,
		ThreadID:           threadID,
		VerificationStatus: store.VerificationAnonymous,
		CreatedAt:          r.now(),
	}

	err := r.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateIdentity(ctx, ident)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("identity created", "identity_id", ident.ID, "channel", channel, "thread_id", threadID)
	return ident, nil
}

// GetIdentity retrieves an identity by ID.
func (r *Registry) GetIdentity(ctx context.Context, identityID string) (*store.Identity, error) {
	var ident *store.Identity
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		ident, err = tx.GetIdentity(ctx, identityID)
		return err
	})
	return ident, err
}

// GetIdentityByThread retrieves the identity of a thread.
func (r *Registry) GetIdentityByThread(ctx context.Context, threadID string) (*store.Identity, error) {
	var ident *store.Identity
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		ident, err = tx.GetIdentityByThread(ctx, threadID)
		return err
	})
	return ident, err
}

// ListIdentitiesByUser returns every identity bound to a user.
func (r *Registry) ListIdentitiesByUser(ctx context.Context, userID string) ([]*store.Identity, error) {
	var idents []*store.Identity
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		idents, err = tx.ListIdentitiesByUser(ctx, userID)
		return err
	})
	return idents, err
}

// RequestVerification issues a fresh code and moves the identity to
// pending. A re-request replaces the previous code. The plaintext code is
// returned to the caller for delivery and never stored.
func (r *Registry) RequestVerification(ctx context.Context, identityID, method, contact string) (string, error) {
	method = strings.TrimSpace(method)
	contact = strings.TrimSpace(contact)
	if method == "" || contact == "" {
		return "", fmt.Errorf("%w: verification method and contact are required", store.ErrValidation)
	}

	code, err := r.generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), r.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing verification code: %w", err)
	}

	now := r.now()
	expires := now.Add(r.codeTTL)

	err = r.store.Update(ctx, func(tx store.Tx) error {
		ident, err := tx.GetIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if ident.VerificationStatus == store.VerificationVerified {
			return fmt.Errorf("%w: %s", ErrAlreadyVerified, identityID)
		}

		ident.VerificationStatus = store.VerificationPending
		ident.VerificationMethod = method
		ident.VerificationContact = contact
		ident.CodeHash = string(hash)
		ident.CodeExpiresAt = &expires
		if err := tx.UpdateIdentity(ctx, ident); err != nil {
			return err
		}

		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			Action:     store.AuditRequestVerification,
			TargetType: "identity",
			TargetID:   identityID,
			Timestamp:  now,
			Detail:     map[string]any{"method": method},
		})
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("verification requested", "identity_id", identityID, "method", method, "expires_at", expires)
	return code, nil
}

// ConfirmVerification checks a submitted code and, on success, binds the
// identity to a persistent user and marks it verified. When targetUserID
// is empty the identity keeps the user it is already bound to, or a new
// user is provisioned. A mismatched code is not consumed.
func (r *Registry) ConfirmVerification(ctx context.Context, identityID, submittedCode, targetUserID string) (*store.Identity, error) {
	var result *store.Identity
	var provisioned bool

	err := r.store.Update(ctx, func(tx store.Tx) error {
		now := r.now()

		ident, err := tx.GetIdentity(ctx, identityID)
		if err != nil {
			return err
		}

		switch ident.VerificationStatus {
		case store.VerificationVerified:
			return fmt.Errorf("%w: identity %s is already verified", store.ErrConflict, identityID)
		case store.VerificationAnonymous:
			return fmt.Errorf("%w: no verification pending for %s", store.ErrInvalidCode, identityID)
		}
		if ident.CodeHash == "" || ident.CodeExpiresAt == nil {
			return fmt.Errorf("%w: no verification pending for %s", store.ErrInvalidCode, identityID)
		}
		if now.After(*ident.CodeExpiresAt) {
			return fmt.Errorf("%w: code for %s expired at %s", store.ErrExpiredCode, identityID, ident.CodeExpiresAt.Format(time.RFC3339))
		}
		if err := bcrypt.CompareHashAndPassword([]byte(ident.CodeHash), []byte(submittedCode)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return fmt.Errorf("%w: code does not match", store.ErrInvalidCode)
			}
			return fmt.Errorf("comparing verification code: %w", err)
		}

		userID, created, err := r.resolveTargetUser(ctx, tx, ident, targetUserID, now)
		if err != nil {
			return err
		}
		provisioned = created

		ident.PersistentUserID = &userID
		if ident.MergedAt == nil {
			ident.MergedAt = &now
		}
		ident.VerificationStatus = store.VerificationVerified
		ident.CodeHash = ""
		ident.CodeExpiresAt = nil
		if err := tx.UpdateIdentity(ctx, ident); err != nil {
			return err
		}

		if err := tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: userID,
			Action:      store.AuditVerifyIdentity,
			TargetType:  "identity",
			TargetID:    identityID,
			Timestamp:   now,
			Detail:      map[string]any{"user_id": userID, "provisioned": created},
		}); err != nil {
			return err
		}

		result = ident
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("identity verified",
		"identity_id", identityID,
		"user_id", *result.PersistentUserID,
		"provisioned", provisioned,
	)
	return result, nil
}

// resolveTargetUser picks the user a confirmed identity binds to. It
// reports whether a new user was provisioned.
func (r *Registry) resolveTargetUser(ctx context.Context, tx store.Tx, ident *store.Identity, targetUserID string, now time.Time) (string, bool, error) {
	if ident.PersistentUserID != nil {
		if targetUserID != "" && targetUserID != *ident.PersistentUserID {
			return "", false, fmt.Errorf("%w: identity %s is bound to a different user", store.ErrConflict, ident.ID)
		}
		return *ident.PersistentUserID, false, nil
	}

	if targetUserID != "" {
		u, err := tx.GetUser(ctx, targetUserID)
		if err != nil {
			return "", false, err
		}
		if u.Status != store.UserStatusActive {
			return "", false, fmt.Errorf("%w: user %s is %s", store.ErrConflict, u.ID, u.Status)
		}
		return u.ID, false, nil
	}

	u := &store.User{ID: uuid.New().String(), Status: store.UserStatusActive, CreatedAt: now}
	if err := tx.CreateUser(ctx, u); err != nil {
		return "", false, err
	}
	if err := tx.AppendAuditLog(ctx, &store.AuditEntry{
		Action:     store.AuditProvisionUser,
		TargetType: "user",
		TargetID:   u.ID,
		Timestamp:  now,
		Detail:     map[string]any{"identity_id": ident.ID},
	}); err != nil {
		return "", false, err
	}
	return u.ID, true, nil
}

// generateCode returns a random numeric code of the configured length.
func (r *Registry) generateCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for range r.codeLength {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generating verification code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// NewIdentityID returns a display-form identity ID: anon_<channel>_<local-id>.
func NewIdentityID(channel string) string {
	local := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return "anon_" + sanitizeChannel(channel) + "_" + local
}

// sanitizeChannel keeps identity IDs free of separators and whitespace.
func sanitizeChannel(channel string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, channel)
}
