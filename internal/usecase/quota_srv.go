package usecase

import (
	"context"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"photo-dispatch/internal/data/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// QuotaService gates request intake on a per-guest monthly cap.
type QuotaService interface {
	GuestKey(phone, email string) string
	MonthBucket(t time.Time) string
	// Check is the read-only precheck. The binding increment happens in the
	// intake transaction.
	Check(ctx context.Context, guestKey, monthBucket string) (int, error)
	Cap() int
}

type quotaService struct {
	usage repository.UsageRepository
	cap   int
	loc   *time.Location
	log   *zap.Logger
}

func NewQuotaService(usage repository.UsageRepository, cap int, loc *time.Location, log *zap.Logger) QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &quotaService{
		usage: usage,
		cap:   cap,
		loc:   loc,
		log:   log.With(zap.String("service", "quota")),
	}
}

// GuestKey hashes the normalized contact pair so raw phone numbers and
// emails never land in the usage table.
func (s *quotaService) GuestKey(phone, email string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(email)))

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (s *quotaService) MonthBucket(t time.Time) string {
	return t.In(s.loc).Format("2006-01")
}

func (s *quotaService) Check(ctx context.Context, guestKey, monthBucket string) (int, error) {
	count, err := s.usage.Count(ctx, guestKey, monthBucket)
	if err != nil {
		return 0, err
	}
	if count >= s.cap {
		s.log.Info("Monthly request cap reached",
			zap.String("month", monthBucket),
			zap.Int("count", count),
		)
		return count, ErrUsageLimitExceeded
	}
	return count, nil
}

func (s *quotaService) Cap() int {
	return s.cap
}
