package notify

import (
	"fmt"
	"strings"

	"github.com/dukerupert/academy/internal/fcm"
)

const (
	notificationIcon  = "/static/icons/icon-192.png"
	notificationBadge = "/static/icons/badge-72.png"
)

// Payload is the body of POST /api/send-notification.
type Payload struct {
	Tokens       []string         `json:"tokens"`
	Notification fcm.Notification `json:"notification"`
}

// Event describes a checkout or enrollment for the admin notification.
type Event struct {
	// Reference identifies the purchase (invoice or checkout session id)
	// and becomes part of the dedupe tag.
	Reference string
	UserName  string
	UserEmail string
	Courses   []string
	Amount    float64
	Currency  string
}

func (e Event) who() string {
	switch {
	case e.UserName != "":
		return e.UserName
	case e.UserEmail != "":
		return e.UserEmail
	default:
		return "A student"
	}
}

func (e Event) what() string {
	switch len(e.Courses) {
	case 0:
		return "a course"
	case 1:
		return e.Courses[0]
	default:
		return fmt.Sprintf("%s and %d more", e.Courses[0], len(e.Courses)-1)
	}
}

func (e Event) amount() string {
	if e.Amount <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%.2f %s)", e.Amount, strings.ToUpper(e.Currency))
}

func checkoutNotification(e Event) fcm.Notification {
	return fcm.Notification{
		Title: "New checkout started",
		Body:  fmt.Sprintf("%s started checkout for %s%s", e.who(), e.what(), e.amount()),
		Icon:  notificationIcon,
		Badge: notificationBadge,
		Tag:   "checkout-" + e.Reference,
		Data: map[string]string{
			"type":      "checkout",
			"reference": e.Reference,
			"url":       "/admin/settings",
		},
	}
}

func enrollmentNotification(e Event) fcm.Notification {
	return fcm.Notification{
		Title: "New enrollment",
		Body:  fmt.Sprintf("%s enrolled in %s%s", e.who(), e.what(), e.amount()),
		Icon:  notificationIcon,
		Badge: notificationBadge,
		Tag:   "enrollment-" + e.Reference,
		Data: map[string]string{
			"type":      "enrollment",
			"reference": e.Reference,
			"url":       "/admin/settings",
		},
	}
}
