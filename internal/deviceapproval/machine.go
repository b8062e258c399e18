package deviceapproval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dashboard-gateway/internal/email"
)

// ErrForbidden is returned by RequireApproved when the device is not in
// the approved state, or the caller omitted its device id header.
var ErrForbidden = errors.New("device not approved")

// EmailSender is the subset of email.Sender the state machine needs;
// declared as an interface so tests can substitute a fake.
type EmailSender interface {
	Send(ctx context.Context, to string, msg email.Message) bool
}

// EmailIdentity resolves a principal id to its email address when only a
// capability token (not a bearer token) is available, as on the
// confirmation endpoint.
type EmailIdentity interface {
	FetchEmailByID(ctx context.Context, principalID string) (string, error)
}

// deviceStore is the subset of *Store the state machine drives; declared
// as an interface so the FSM transitions can be tested without a live
// database.
type deviceStore interface {
	GetByUserDevice(ctx context.Context, principalID, deviceID string) (*DeviceRecord, error)
	GetByToken(ctx context.Context, token string) (*DeviceRecord, error)
	Upsert(ctx context.Context, d *DeviceRecord) error
	Update(ctx context.Context, id string, patch Patch) error
	RecordLoginEvent(ctx context.Context, evt *LoginEvent) error
}

// Service implements the C4 approval state machine on top of Store,
// composing C5's emails at each transition.
type Service struct {
	store          deviceStore
	sender         EmailSender
	identity       EmailIdentity
	confirmURLBase string
}

// NewService wires a Service from its collaborators.
func NewService(store *Store, sender EmailSender, identity EmailIdentity, confirmURLBase string) *Service {
	return newServiceWithStore(store, sender, identity, confirmURLBase)
}

func newServiceWithStore(store deviceStore, sender EmailSender, identity EmailIdentity, confirmURLBase string) *Service {
	return &Service{store: store, sender: sender, identity: identity, confirmURLBase: confirmURLBase}
}

// LoginInput carries the device attributes a /registerLoginEvent or
// /checkDeviceStatus call reports about the caller's current device.
type LoginInput struct {
	DeviceID   string
	DeviceName string
	UserAgent  string
	IP         string
	Locale     string
	Timezone   string
	Screen     string
	Resend     bool
}

// LoginResult is returned to the HTTP layer for both /registerLoginEvent
// and /checkDeviceStatus.
type LoginResult struct {
	Status               Status
	RequiresConfirmation bool
	Device               *DeviceRecord
}

// Login drives the absent/pending/approved transitions for a single
// device login or status check.
func (s *Service) Login(ctx context.Context, principalID, principalEmail string, in LoginInput) (*LoginResult, error) {
	existing, err := s.store.GetByUserDevice(ctx, principalID, in.DeviceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return s.transitionAbsentToPending(ctx, principalID, principalEmail, in)
	case existing.Status == StatusPending:
		return s.transitionPendingToPending(ctx, principalEmail, existing, in)
	default:
		return s.transitionApprovedToApproved(ctx, principalID, principalEmail, existing, in)
	}
}

func (s *Service) transitionAbsentToPending(ctx context.Context, principalID, principalEmail string, in LoginInput) (*LoginResult, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	rec := &DeviceRecord{
		PrincipalID:   principalID,
		DeviceID:      in.DeviceID,
		DeviceName:    in.DeviceName,
		UserAgent:     in.UserAgent,
		IP:            in.IP,
		Locale:        in.Locale,
		Timezone:      in.Timezone,
		Screen:        in.Screen,
		Status:        StatusPending,
		ApprovalToken: &token,
		LastSeenAt:    now,
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.RecordLoginEvent(ctx, &LoginEvent{
		PrincipalID: principalID, DeviceID: in.DeviceID, DeviceName: in.DeviceName,
		IP: in.IP, UserAgent: in.UserAgent, Locale: in.Locale, Timezone: in.Timezone,
		Metadata: map[string]any{"event": "device_pending"},
	}); err != nil {
		return nil, err
	}
	s.sendConfirmation(ctx, principalEmail, rec)

	return &LoginResult{Status: StatusPending, RequiresConfirmation: true, Device: rec}, nil
}

func (s *Service) transitionPendingToPending(ctx context.Context, principalEmail string, existing *DeviceRecord, in LoginInput) (*LoginResult, error) {
	needsFreshToken := in.Resend || existing.ApprovalToken == nil
	token := existing.ApprovalToken
	if needsFreshToken {
		fresh := uuid.NewString()
		token = &fresh
	}

	patch := Patch{ApprovalToken: &token}
	if err := s.store.Update(ctx, existing.ID, patch); err != nil {
		return nil, err
	}
	existing.ApprovalToken = token

	s.sendConfirmation(ctx, principalEmail, existing)

	return &LoginResult{Status: StatusPending, RequiresConfirmation: true, Device: existing}, nil
}

func (s *Service) transitionApprovedToApproved(ctx context.Context, principalID, principalEmail string, existing *DeviceRecord, in LoginInput) (*LoginResult, error) {
	patch, changed := diffMutableAttrs(existing, in)
	now := time.Now().UTC()
	patch.LastSeenAt = &now

	if err := s.store.Update(ctx, existing.ID, patch); err != nil {
		return nil, err
	}
	if changed {
		applyMutableAttrs(existing, in)
	}
	existing.LastSeenAt = now

	if err := s.store.RecordLoginEvent(ctx, &LoginEvent{
		PrincipalID: principalID, DeviceID: in.DeviceID, DeviceName: existing.DeviceName,
		IP: in.IP, UserAgent: in.UserAgent, Locale: in.Locale, Timezone: in.Timezone,
		Metadata: map[string]any{"event": "device_login"},
	}); err != nil {
		return nil, err
	}

	s.sendLoginNotification(ctx, principalEmail, existing, now)

	return &LoginResult{Status: StatusApproved, RequiresConfirmation: false, Device: existing}, nil
}

// diffMutableAttrs computes the minimal patch for an approved→approved
// login: only attributes that actually changed are written, so a login
// that changes nothing performs no UPDATE of those columns.
func diffMutableAttrs(existing *DeviceRecord, in LoginInput) (Patch, bool) {
	var patch Patch
	changed := false

	if in.DeviceName != "" && in.DeviceName != existing.DeviceName {
		patch.DeviceName = &in.DeviceName
		changed = true
	}
	if in.UserAgent != "" && in.UserAgent != existing.UserAgent {
		patch.UserAgent = &in.UserAgent
		changed = true
	}
	if in.IP != "" && in.IP != existing.IP {
		patch.IP = &in.IP
		changed = true
	}
	if in.Locale != "" && in.Locale != existing.Locale {
		patch.Locale = &in.Locale
		changed = true
	}
	if in.Timezone != "" && in.Timezone != existing.Timezone {
		patch.Timezone = &in.Timezone
		changed = true
	}
	if in.Screen != "" && in.Screen != existing.Screen {
		patch.Screen = &in.Screen
		changed = true
	}
	return patch, changed
}

func applyMutableAttrs(existing *DeviceRecord, in LoginInput) {
	if in.DeviceName != "" {
		existing.DeviceName = in.DeviceName
	}
	if in.UserAgent != "" {
		existing.UserAgent = in.UserAgent
	}
	if in.IP != "" {
		existing.IP = in.IP
	}
	if in.Locale != "" {
		existing.Locale = in.Locale
	}
	if in.Timezone != "" {
		existing.Timezone = in.Timezone
	}
	if in.Screen != "" {
		existing.Screen = in.Screen
	}
}

// ConfirmByToken resolves a single-use approval token, transitions the
// device to approved, and records the login event. A second confirmation
// with the same token fails ErrNotFound because the token was cleared.
func (s *Service) ConfirmByToken(ctx context.Context, token string) (*DeviceRecord, error) {
	rec, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	approved := StatusApproved
	var nilToken *string
	patch := Patch{
		Status:        &approved,
		ApprovalToken: &nilToken,
		ConfirmedAt:   ptrptr(&now),
		LastSeenAt:    &now,
	}
	if err := s.store.Update(ctx, rec.ID, patch); err != nil {
		return nil, err
	}
	rec.Status = StatusApproved
	rec.ApprovalToken = nil
	rec.ConfirmedAt = &now
	rec.LastSeenAt = now

	if err := s.store.RecordLoginEvent(ctx, &LoginEvent{
		PrincipalID: rec.PrincipalID, DeviceID: rec.DeviceID, DeviceName: rec.DeviceName,
		IP: rec.IP, UserAgent: rec.UserAgent, Locale: rec.Locale, Timezone: rec.Timezone,
		Metadata: map[string]any{"event": "device_confirmed"},
	}); err != nil {
		return nil, err
	}

	if to, err := s.identity.FetchEmailByID(ctx, rec.PrincipalID); err == nil && to != "" {
		s.sendLoginNotification(ctx, to, rec, now)
	}

	return rec, nil
}

// RequireApproved fails ErrForbidden if deviceID is empty or the record is
// absent/not approved.
func (s *Service) RequireApproved(ctx context.Context, principalID, deviceID string) error {
	if deviceID == "" {
		return ErrForbidden
	}
	rec, err := s.store.GetByUserDevice(ctx, principalID, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if rec.Status != StatusApproved || rec.ConfirmedAt == nil {
		return ErrForbidden
	}
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, to string, rec *DeviceRecord) {
	if to == "" || rec.ApprovalToken == nil {
		return
	}
	link := fmt.Sprintf("%s/confirmDevice?token=%s", s.confirmURLBase, *rec.ApprovalToken)
	msg := email.ComposeConfirmation(email.ConfirmationParams{
		RecipientName: to,
		DeviceName:    rec.DeviceName,
		IP:            rec.IP,
		Locale:        rec.Locale,
		Timezone:      rec.Timezone,
		ConfirmLink:   link,
	})
	s.sender.Send(ctx, to, msg)
}

func (s *Service) sendLoginNotification(ctx context.Context, to string, rec *DeviceRecord, when time.Time) {
	if to == "" {
		return
	}
	msg := email.ComposeLoginNotification(email.LoginNotificationParams{
		RecipientName: to,
		DeviceName:    rec.DeviceName,
		IP:            rec.IP,
		Locale:        rec.Locale,
		Timezone:      rec.Timezone,
		EventTime:     when,
	})
	s.sender.Send(ctx, to, msg)
}

func ptrptr(t *time.Time) **time.Time { return &t }
