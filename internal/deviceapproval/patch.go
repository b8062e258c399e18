package deviceapproval

import (
	"fmt"
	"strings"
	"time"
)

// Patch is a partial update to a device record; only non-nil fields are
// applied, using a dynamically built SET clause so unset fields are
// never touched.
type Patch struct {
	DeviceName    *string
	UserAgent     *string
	IP            *string
	Locale        *string
	Timezone      *string
	Screen        *string
	Status        *Status
	ApprovalToken **string // pointer-to-pointer: set to clear the token to NULL
	ConfirmedAt   **time.Time
	LastSeenAt    *time.Time
}

func (p Patch) build() ([]string, []any) {
	var set []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.DeviceName != nil {
		add("device_name", *p.DeviceName)
	}
	if p.UserAgent != nil {
		add("user_agent", *p.UserAgent)
	}
	if p.IP != nil {
		add("ip_address", *p.IP)
	}
	if p.Locale != nil {
		add("locale", *p.Locale)
	}
	if p.Timezone != nil {
		add("timezone", *p.Timezone)
	}
	if p.Screen != nil {
		add("screen", *p.Screen)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.ApprovalToken != nil {
		add("approval_token", *p.ApprovalToken)
	}
	if p.ConfirmedAt != nil {
		add("confirmed_at", *p.ConfirmedAt)
	}
	if p.LastSeenAt != nil {
		add("last_seen_at", *p.LastSeenAt)
	}
	if len(set) > 0 {
		args = append(args, time.Now().UTC())
		set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))
	}
	return set, args
}

func joinSet(set []string) string {
	return strings.Join(set, ", ")
}
