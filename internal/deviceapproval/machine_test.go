package deviceapproval

import (
	"context"
	"testing"
	"time"

	"dashboard-gateway/internal/email"
)

type fakeStore struct {
	byUserDevice map[string]*DeviceRecord
	byToken      map[string]*DeviceRecord
	events       []*LoginEvent
	updates      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byUserDevice: map[string]*DeviceRecord{}, byToken: map[string]*DeviceRecord{}}
}

func key(principalID, deviceID string) string { return principalID + "|" + deviceID }

func (f *fakeStore) GetByUserDevice(_ context.Context, principalID, deviceID string) (*DeviceRecord, error) {
	if d, ok := f.byUserDevice[key(principalID, deviceID)]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetByToken(_ context.Context, token string) (*DeviceRecord, error) {
	if d, ok := f.byToken[token]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Upsert(_ context.Context, d *DeviceRecord) error {
	if d.ID == "" {
		d.ID = "id-" + d.DeviceID
	}
	f.byUserDevice[key(d.PrincipalID, d.DeviceID)] = d
	if d.ApprovalToken != nil {
		f.byToken[*d.ApprovalToken] = d
	}
	return nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch Patch) error {
	f.updates++
	for _, d := range f.byUserDevice {
		if d.ID != id {
			continue
		}
		if patch.DeviceName != nil {
			d.DeviceName = *patch.DeviceName
		}
		if patch.Status != nil {
			d.Status = *patch.Status
		}
		if patch.ApprovalToken != nil {
			old := d.ApprovalToken
			d.ApprovalToken = *patch.ApprovalToken
			if old != nil {
				delete(f.byToken, *old)
			}
			if d.ApprovalToken != nil {
				f.byToken[*d.ApprovalToken] = d
			}
		}
		if patch.ConfirmedAt != nil {
			d.ConfirmedAt = *patch.ConfirmedAt
		}
		if patch.LastSeenAt != nil {
			d.LastSeenAt = *patch.LastSeenAt
		}
	}
	return nil
}

func (f *fakeStore) RecordLoginEvent(_ context.Context, evt *LoginEvent) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeSender struct{ sent int }

func (s *fakeSender) Send(_ context.Context, _ string, _ email.Message) bool {
	s.sent++
	return true
}

type fakeIdentity struct{ email string }

func (f *fakeIdentity) FetchEmailByID(_ context.Context, _ string) (string, error) {
	return f.email, nil
}

func TestService_FirstLoginCreatesPendingDevice(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	svc := newServiceWithStore(store, sender, &fakeIdentity{}, "https://app.example.com")

	res, err := svc.Login(context.Background(), "u1", "ana@example.com", LoginInput{DeviceID: "dev-1", DeviceName: "iPhone"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != StatusPending || !res.RequiresConfirmation {
		t.Fatalf("result = %+v, want pending/requiresConfirmation", res)
	}
	if res.Device.ApprovalToken == nil {
		t.Fatal("expected approval token to be set")
	}
	if sender.sent != 1 {
		t.Fatalf("sent = %d, want 1 confirmation email", sender.sent)
	}
}

func TestService_PendingResendKeepsTokenUnlessRequested(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	svc := newServiceWithStore(store, sender, &fakeIdentity{}, "https://app.example.com")

	first, _ := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1"})
	firstToken := *first.Device.ApprovalToken

	second, err := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if *second.Device.ApprovalToken != firstToken {
		t.Fatal("token should be unchanged without explicit resend")
	}

	third, err := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1", Resend: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if *third.Device.ApprovalToken == firstToken {
		t.Fatal("token should change on explicit resend")
	}
}

func TestService_ConfirmByTokenTransitionsToApproved(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	svc := newServiceWithStore(store, sender, &fakeIdentity{email: "a@e.com"}, "https://app.example.com")

	first, _ := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1"})
	token := *first.Device.ApprovalToken

	confirmed, err := svc.ConfirmByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusApproved || confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed = %+v, want approved with confirmed_at", confirmed)
	}
	if confirmed.ApprovalToken != nil {
		t.Fatal("token should be cleared after confirmation")
	}

	if _, err := svc.ConfirmByToken(context.Background(), token); err != ErrNotFound {
		t.Fatalf("second confirm with same token: err = %v, want ErrNotFound", err)
	}
}

func TestService_ApprovedLoginNoChangeSkipsAttributeUpdate(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	svc := newServiceWithStore(store, sender, &fakeIdentity{email: "a@e.com"}, "https://app.example.com")

	first, _ := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1", DeviceName: "iPhone"})
	token := *first.Device.ApprovalToken
	svc.ConfirmByToken(context.Background(), token)

	updatesBefore := store.updates
	res, err := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1", DeviceName: "iPhone"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != StatusApproved {
		t.Fatalf("status = %v, want approved", res.Status)
	}
	// Only last_seen_at changes when attributes are identical; Update is
	// still called once (to bump last_seen_at) but DeviceName is untouched.
	if store.updates <= updatesBefore {
		t.Fatal("expected at least one update call to bump last_seen_at")
	}
	if res.Device.DeviceName != "iPhone" {
		t.Fatalf("device name changed unexpectedly: %v", res.Device.DeviceName)
	}
}

func TestService_RequireApproved(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	svc := newServiceWithStore(store, sender, &fakeIdentity{email: "a@e.com"}, "https://app.example.com")

	if err := svc.RequireApproved(context.Background(), "u1", "d1"); err != ErrForbidden {
		t.Fatalf("absent device: err = %v, want ErrForbidden", err)
	}
	if err := svc.RequireApproved(context.Background(), "u1", ""); err != ErrForbidden {
		t.Fatalf("empty device id: err = %v, want ErrForbidden", err)
	}

	first, _ := svc.Login(context.Background(), "u1", "a@e.com", LoginInput{DeviceID: "d1"})
	if err := svc.RequireApproved(context.Background(), "u1", "d1"); err != ErrForbidden {
		t.Fatalf("pending device: err = %v, want ErrForbidden", err)
	}

	svc.ConfirmByToken(context.Background(), *first.Device.ApprovalToken)
	if err := svc.RequireApproved(context.Background(), "u1", "d1"); err != nil {
		t.Fatalf("approved device: err = %v, want nil", err)
	}

	time.Sleep(time.Millisecond)
	if err := svc.RequireApproved(context.Background(), "u1", "d1"); err != nil {
		t.Fatalf("monotonicity: err = %v, want nil on repeat check", err)
	}
}
