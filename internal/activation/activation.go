package activation

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CodePrefix marks inbound direct messages that carry an activation code.
const CodePrefix = "auth:0:"

// codeRandomBytes yields a 12 hex character suffix.
const codeRandomBytes = 6

type Store interface {
	RequestActivationCode(ctx context.Context, telegramID int64, newCode string) (string, error)
	FindUsersByActivationCode(ctx context.Context, code string) ([]*models.User, error)
	LinkExternalIdentity(ctx context.Context, telegramID int64, code, identity string) (bool, error)
}

// Notifier delivers a text message to a chat user.
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

type Service struct {
	store    Store
	notifier Notifier
	newCode  func() string
	log      *logrus.Entry
}

func New(store Store, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		newCode:  GenerateCode,
		log:      logging.Component("activation"),
	}
}

// GenerateCode returns a fresh code. The suffix comes from the random bytes
// of a v4 UUID, which precede the version nibble.
func GenerateCode() string {
	id := uuid.New()
	return CodePrefix + hex.EncodeToString(id[:codeRandomBytes])
}

func IsCode(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), CodePrefix)
}

// RequestActivation returns the user's pending code, issuing one if needed.
func (s *Service) RequestActivation(ctx context.Context, telegramID int64) (string, error) {
	code, err := s.store.RequestActivationCode(ctx, telegramID, s.newCode())
	if err != nil {
		return "", fmt.Errorf("requesting activation for %d: %w", telegramID, err)
	}
	s.log.Infof("activation code pending for user %d", telegramID)
	return code, nil
}

// ObserveInbound handles a direct message from sender. It reports the chat
// user that was activated, or 0 when the message was not a live code.
func (s *Service) ObserveInbound(ctx context.Context, sender, text string) (int64, error) {
	code := strings.TrimSpace(text)
	if !strings.HasPrefix(code, CodePrefix) || sender == "" {
		return 0, nil
	}

	users, err := s.store.FindUsersByActivationCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("looking up code: %w", err)
	}
	switch len(users) {
	case 0:
		s.log.Debugf("ignoring unmatched code from %s", sender)
		return 0, nil
	case 1:
	default:
		return 0, apperr.CodeCollision(code, len(users))
	}

	user := users[0]
	linked, err := s.store.LinkExternalIdentity(ctx, user.TelegramID, code, sender)
	if err != nil {
		return 0, fmt.Errorf("linking %s to %d: %w", sender, user.TelegramID, err)
	}
	if !linked {
		s.log.Infof("code for user %d was consumed concurrently, ignoring", user.TelegramID)
		return 0, nil
	}

	s.log.Infof("user %d activated as %s", user.TelegramID, sender)

	msg := fmt.Sprintf(
		"✅ Your account is now activated as @%s! You can now send reels to download.",
		sender,
	)
	if err := s.notifier.Notify(ctx, user.TelegramID, msg); err != nil {
		s.log.Errorf("failed to send activation confirmation to %d: %v", user.TelegramID, err)
	}

	return user.TelegramID, nil
}
