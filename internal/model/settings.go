package model

import "time"

// SettingsType discriminates the singleton settings documents.
type SettingsType string

const (
	SettingsGeneral SettingsType = "general"
	SettingsPayment SettingsType = "payment"
	SettingsPWA     SettingsType = "pwa"
)

// SettingsTypes lists every document type in save order.
var SettingsTypes = []SettingsType{SettingsGeneral, SettingsPayment, SettingsPWA}

func (t SettingsType) Valid() bool {
	switch t {
	case SettingsGeneral, SettingsPayment, SettingsPWA:
		return true
	}
	return false
}

// SettingsDocument is a raw row of settings_documents.
type SettingsDocument struct {
	Type      SettingsType `json:"type"`
	Data      []byte       `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type GeneralSettings struct {
	SiteName         string `json:"siteName" validate:"max=80"`
	SiteDescription  string `json:"siteDescription" validate:"max=500"`
	CommunityEnabled bool   `json:"communityEnabled"`
}

type PaymentSettings struct {
	Instructions string `json:"instructions" validate:"max=5000"`
}

type PWASettings struct {
	AppName         string `json:"appName" validate:"max=80"`
	AppShortName    string `json:"appShortName" validate:"max=24"`
	AppIcon         string `json:"appIcon" validate:"omitempty,url"`
	AppLogo         string `json:"appLogo" validate:"omitempty,url"`
	ThemeColor      string `json:"themeColor" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,hexcolor"`
}
