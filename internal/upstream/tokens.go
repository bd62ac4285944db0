package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mediacache/internal/cache"
	"github.com/charlesng35/mediacache/internal/models"
	"github.com/charlesng35/mediacache/pkg/logger"
)

// ErrNoToken is returned by Select when every token is disabled or cooling down.
var ErrNoToken = errors.New("upstream: no available token")

// maxFailureDetail bounds the stored origin response excerpt.
const maxFailureDetail = 200

// Token is a selected origin credential.
type Token struct {
	ID    string
	Value string
}

// Suffix returns the last characters of the token for logs.
func (t Token) Suffix() string {
	if len(t.Value) <= 6 {
		return t.Value
	}
	return t.Value[len(t.Value)-6:]
}

// TokenAuthority hands out origin credentials and is told when they fail.
type TokenAuthority interface {
	Select(ctx context.Context) (Token, error)
	RecordFailure(ctx context.Context, token Token, status int, detail string) error
	ApplyCooldown(ctx context.Context, token Token, status int) error
}

// TokenPolicy controls cooldown durations and automatic disabling.
type TokenPolicy struct {
	Cooldown          time.Duration
	RateLimitCooldown time.Duration
	AuthCooldown      time.Duration
	MaxFailures       int64
	FailureWindow     time.Duration
}

func (p TokenPolicy) withDefaults() TokenPolicy {
	if p.Cooldown <= 0 {
		p.Cooldown = 30 * time.Second
	}
	if p.RateLimitCooldown <= 0 {
		p.RateLimitCooldown = 5 * time.Minute
	}
	if p.AuthCooldown <= 0 {
		p.AuthCooldown = 30 * time.Minute
	}
	if p.FailureWindow <= 0 {
		p.FailureWindow = 10 * time.Minute
	}
	return p
}

// CooldownFor maps an origin status to a cooldown duration.
func (p TokenPolicy) CooldownFor(status int) time.Duration {
	switch status {
	case http.StatusTooManyRequests:
		return p.RateLimitCooldown
	case http.StatusUnauthorized, http.StatusForbidden:
		return p.AuthCooldown
	default:
		return p.Cooldown
	}
}

// DatabaseTokenAuthority keeps tokens in origin_tokens and cooldown markers in a cache.Store.
type DatabaseTokenAuthority struct {
	db     *gorm.DB
	store  cache.Store
	policy TokenPolicy
	now    func() time.Time
	log    *zap.Logger
}

// NewDatabaseTokenAuthority wires the token table and the cooldown store.
func NewDatabaseTokenAuthority(db *gorm.DB, store cache.Store, policy TokenPolicy) (*DatabaseTokenAuthority, error) {
	if db == nil {
		return nil, errors.New("upstream: db is required")
	}
	if store == nil {
		return nil, errors.New("upstream: cooldown store is required")
	}
	return &DatabaseTokenAuthority{
		db:     db,
		store:  store,
		policy: policy.withDefaults(),
		now:    time.Now,
		log:    logger.WithModule("upstream"),
	}, nil
}

// SeedTokens inserts configured tokens that are not yet stored. Existing rows keep their state.
func SeedTokens(ctx context.Context, db *gorm.DB, values []string) (int, error) {
	inserted := 0
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		token := models.OriginToken{Token: value, Status: models.TokenStatusActive}
		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
			Create(&token)
		if res.Error != nil {
			return inserted, fmt.Errorf("upstream: seed token: %w", res.Error)
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

func cooldownKey(id string) string {
	return "origin:cooldown:" + id
}

func failureKey(id string) string {
	return "origin:failures:" + id
}

// Select returns the active token with the fewest failures and the oldest
// last use, skipping tokens that are cooling down.
func (a *DatabaseTokenAuthority) Select(ctx context.Context) (Token, error) {
	var candidates []models.OriginToken
	err := a.db.WithContext(ctx).
		Where("status = ?", models.TokenStatusActive).
		Order("failure_count ASC").
		Order("CASE WHEN last_used_at IS NULL THEN 0 ELSE 1 END").
		Order("last_used_at ASC").
		Order("created_at ASC").
		Find(&candidates).Error
	if err != nil {
		return Token{}, fmt.Errorf("upstream: list tokens: %w", err)
	}

	for _, candidate := range candidates {
		_, cooling, err := a.store.Get(ctx, cooldownKey(candidate.ID))
		if err != nil {
			a.log.Warn("cooldown lookup failed", zap.String("token_id", candidate.ID), zap.Error(err))
		}
		if cooling {
			continue
		}

		now := a.now()
		if err := a.db.WithContext(ctx).
			Model(&models.OriginToken{}).
			Where("id = ?", candidate.ID).
			UpdateColumn("last_used_at", now).Error; err != nil {
			a.log.Warn("failed to mark token used", zap.String("token_id", candidate.ID), zap.Error(err))
		}
		return Token{ID: candidate.ID, Value: candidate.Token}, nil
	}
	return Token{}, ErrNoToken
}

// RecordFailure stores the failed status and a truncated detail. Repeated
// non rate-limit failures inside the window disable the token.
func (a *DatabaseTokenAuthority) RecordFailure(ctx context.Context, token Token, status int, detail string) error {
	now := a.now()
	err := a.db.WithContext(ctx).
		Model(&models.OriginToken{}).
		Where("id = ?", token.ID).
		Updates(map[string]any{
			"failure_count":       gorm.Expr("failure_count + ?", 1),
			"last_failure_status": status,
			"last_failure_detail": truncate(detail, maxFailureDetail),
			"last_failure_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("upstream: record failure: %w", err)
	}

	if status == http.StatusTooManyRequests || a.policy.MaxFailures <= 0 {
		return nil
	}

	count, _, err := a.store.IncrementWithTTL(ctx, failureKey(token.ID), a.policy.FailureWindow)
	if err != nil {
		return fmt.Errorf("upstream: failure window: %w", err)
	}
	if count < a.policy.MaxFailures {
		return nil
	}

	if err := a.db.WithContext(ctx).
		Model(&models.OriginToken{}).
		Where("id = ?", token.ID).
		UpdateColumn("status", models.TokenStatusDisabled).Error; err != nil {
		return fmt.Errorf("upstream: disable token: %w", err)
	}
	a.log.Warn("origin token disabled",
		zap.String("token_suffix", token.Suffix()),
		zap.Int64("failures", count),
		zap.Int("last_status", status),
	)
	return nil
}

// ApplyCooldown hides the token from Select for a status-dependent duration.
func (a *DatabaseTokenAuthority) ApplyCooldown(ctx context.Context, token Token, status int) error {
	ttl := a.policy.CooldownFor(status)
	if err := a.store.Set(ctx, cooldownKey(token.ID), []byte(fmt.Sprint(status)), ttl); err != nil {
		return fmt.Errorf("upstream: apply cooldown: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
