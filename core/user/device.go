package user

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
)

// Device is a login session opened from one device fingerprint.
type Device struct {
	ID        string    `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"FK_user"`
	Type      string    `db:"type" json:"type"`
	Brand     string    `db:"brand" json:"brand"`
	Model     string    `db:"model" json:"model"`
	OS        string    `db:"os" json:"os"`
	Browser   string    `db:"browser" json:"browser"`
	IP        string    `db:"ip" json:"ip"`
	UserAgent string    `db:"user_agent" json:"userAgent"`
	LoginAt   time.Time `db:"login_at" json:"loginAt"`
	LogoutAt  null.Time `db:"logout_at" json:"logoutAt"`
	IsActive  bool      `db:"is_active" json:"isActive"`
}

// DeviceInfo is the fingerprint sent by the client on login. IP and UserAgent are filled from the request.
type DeviceInfo struct {
	Type      string `json:"type"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

func (di *DeviceInfo) Clean() {
	di.Type = core.CleanString(di.Type)
	di.Brand = core.CleanString(di.Brand)
	di.Model = core.CleanString(di.Model)
	di.OS = core.CleanString(di.OS)
	di.Browser = core.CleanString(di.Browser)
	di.IP = core.CleanString(di.IP)
	di.UserAgent = core.CleanString(di.UserAgent)
}

// SameAs is a loose comparison: the device is considered the same when type, brand, model,
// OS and browser match case-insensitively. IP and user agent are allowed to change.
func (d Device) SameAs(info DeviceInfo) bool {
	return strings.EqualFold(d.Type, info.Type) &&
		strings.EqualFold(d.Brand, info.Brand) &&
		strings.EqualFold(d.Model, info.Model) &&
		strings.EqualFold(d.OS, info.OS) &&
		strings.EqualFold(d.Browser, info.Browser)
}
