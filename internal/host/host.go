// Package host handles estate lifecycle and family onboarding: creating an
// estate, inviting members with emailed join codes, and marking members
// joined. Every lifecycle change lands in the audit log.
package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"familymatter/internal/audit"
	"familymatter/internal/notify"
	"familymatter/internal/store"
)

// Service coordinates estate setup. Email is optional: a nil sender means
// join codes are only reported to the caller.
type Service struct {
	store  *store.Store
	ledger *audit.Ledger
	email  notify.EmailSender
	logger *zap.Logger
}

// New builds the host service.
func New(s *store.Store, l *audit.Ledger, email notify.EmailSender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, ledger: l, email: email, logger: logger}
}

// CreateEstate opens a new estate and returns its id.
func (h *Service) CreateEstate(deceasedName, executorName, executorEmail string) (int64, error) {
	estateID, err := h.store.CreateEstate(deceasedName, executorName, executorEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to create estate: %w", err)
	}
	if err := h.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ActorName:     executorName,
		ActionType:    "estate_created",
		PublicSummary: fmt.Sprintf("Estate of %s opened by %s", deceasedName, executorName),
	}); err != nil {
		h.logger.Warn("failed to audit estate creation", zap.Error(err))
	}
	h.logger.Info("estate created",
		zap.Int64("estate_id", estateID),
		zap.String("deceased", deceasedName))
	return estateID, nil
}

// Invite adds a family member and emails them their join code when an email
// address and sender are available. The join code is always returned so the
// executor can pass it along by hand.
func (h *Service) Invite(ctx context.Context, estateID int64, name, email, role string) (string, error) {
	joinCode, err := h.store.AddFamilyMember(estateID, name, email, role)
	if err != nil {
		return "", fmt.Errorf("failed to invite %s: %w", name, err)
	}

	if err := h.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ActorName:     name,
		ActionType:    "member_invited",
		PublicSummary: fmt.Sprintf("%s was invited to the estate", name),
		Metadata:      map[string]any{"role": role},
	}); err != nil {
		h.logger.Warn("failed to audit invitation", zap.Error(err))
	}

	if h.email != nil && email != "" {
		estate, err := h.store.GetEstate(estateID)
		if err != nil {
			return joinCode, fmt.Errorf("invited but failed to load estate for email: %w", err)
		}
		subject, body := notify.InvitationBody(name, estate.DeceasedName, estate.ExecutorName, joinCode)
		if err := h.email.Send(ctx, email, subject, body); err != nil {
			h.logger.Warn("invitation email failed",
				zap.String("member", name), zap.Error(err))
		}
	}
	return joinCode, nil
}

// Announce emails a group update to every joined member with an address and
// returns how many were reached. Individual send failures are logged and
// skipped so one bad address never blocks the rest.
func (h *Service) Announce(ctx context.Context, estateID int64, message, sentBy string) (int, error) {
	if h.email == nil {
		return 0, fmt.Errorf("no email sender configured")
	}
	estate, err := h.store.GetEstate(estateID)
	if err != nil {
		return 0, err
	}
	members, err := h.store.Members(estateID)
	if err != nil {
		return 0, err
	}

	subject := fmt.Sprintf("An update on the %s Family Matter", estate.DeceasedName)
	body := notify.AnnouncementBody(estate.DeceasedName, message)
	sent := 0
	for _, m := range members {
		if m.Status != store.MemberJoined || m.Email == "" {
			continue
		}
		if err := h.email.Send(ctx, m.Email, subject, body); err != nil {
			h.logger.Warn("announcement email failed",
				zap.String("member", m.Name), zap.Error(err))
			continue
		}
		sent++
	}

	if err := h.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ActorName:     sentBy,
		ActionType:    "announcement_sent",
		PublicSummary: fmt.Sprintf("%s sent an announcement to the family", sentBy),
		Metadata:      map[string]any{"recipients": sent},
	}); err != nil {
		h.logger.Warn("failed to audit announcement", zap.Error(err))
	}
	return sent, nil
}

// Close marks the estate fully settled.
func (h *Service) Close(estateID int64, closedBy string) error {
	if err := h.store.CloseEstate(estateID); err != nil {
		return err
	}
	if err := h.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ActorName:     closedBy,
		ActionType:    "estate_closed",
		PublicSummary: fmt.Sprintf("The estate was closed by %s", closedBy),
	}); err != nil {
		h.logger.Warn("failed to audit estate close", zap.Error(err))
	}
	h.logger.Info("estate closed", zap.Int64("estate_id", estateID))
	return nil
}

// Join redeems a join code, flipping the member to joined exactly once.
func (h *Service) Join(estateID int64, joinCode, memberName string) error {
	if err := h.store.MarkMemberJoined(joinCode); err != nil {
		return err
	}
	if err := h.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ActorName:     memberName,
		ActionType:    "member_joined",
		PublicSummary: fmt.Sprintf("%s joined the estate", memberName),
	}); err != nil {
		h.logger.Warn("failed to audit join", zap.Error(err))
	}
	return nil
}
