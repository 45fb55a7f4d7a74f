// Package eventmap turns inbound domain events into notification content.
// Mapping is pure text formatting: missing fields fall back to fixed text and never fail.
package eventmap

import (
	"fmt"
	"strings"

	"github.com/go-notification-service/internal/domain"
)

const missing = "N/A"

// Content is the derived notification kind and text for one event.
type Content struct {
	Kind  domain.Kind
	Title string
	Body  string
}

// Map derives notification content for an event. ok is false for kinds the service
// does not subscribe to.
func Map(kind domain.EventKind, p Payload) (Content, bool) {
	switch kind {
	case domain.EventBookingCreated:
		return Content{
			Kind:  domain.KindBookingConfirmed,
			Title: "Booking Confirmed",
			Body: lines(
				"Your booking has been confirmed!",
				"",
				"Booking ID: "+p.Text("id", missing),
				"Resource ID: "+p.Text("resourceId", missing),
				"Start Time: "+p.Text("startTime", missing),
				"End Time: "+p.Text("endTime", missing),
				"Check-In Code: "+p.Text("qrCode", missing),
				"",
				"Please arrive on time and use your check-in code at the desk.",
			),
		}, true

	case domain.EventBookingCanceled:
		return Content{
			Kind:  domain.KindBookingCanceled,
			Title: "Booking Canceled",
			Body: lines(
				"Your booking has been canceled.",
				"",
				"Booking ID: "+p.Text("id", missing),
				"Resource ID: "+p.Text("resourceId", missing),
				fmt.Sprintf("Original Time: %s to %s", p.Text("startTime", missing), p.Text("endTime", missing)),
			),
		}, true

	case domain.EventBookingCheckedIn:
		return Content{
			Kind:  domain.KindCheckInReminder,
			Title: "Check-In Successful",
			Body: lines(
				"You have successfully checked in!",
				"",
				"Booking ID: "+p.Text("id", missing),
				"Resource ID: "+p.Text("resourceId", missing),
				"Check-in Time: "+p.Text("checkedInAt", missing),
				"",
				"Enjoy your study session!",
			),
		}, true

	case domain.EventBookingNoShow:
		return Content{
			Kind:  domain.KindNoShowAlert,
			Title: "No-Show Alert",
			Body: lines(
				"You did not check in for your booking.",
				"",
				"Booking ID: "+p.Text("id", missing),
				"Resource ID: "+p.Text("resourceId", missing),
				fmt.Sprintf("Scheduled Time: %s to %s", p.Text("startTime", missing), p.Text("endTime", missing)),
				"",
				"The booking has been released. Please book again if you need the resource.",
			),
		}, true

	case domain.EventResourceCreated:
		body := []string{
			fmt.Sprintf("A new %s has been added to the library!", p.Text("type", "Resource")),
			"",
			"Resource: " + p.Text("name", "Unknown"),
		}
		if p.Has("floor") {
			body = append(body, "Floor: "+p.Text("floor", ""))
		}
		body = append(body, "", "You can now book this resource through the floor plan.")
		return Content{
			Kind:  domain.KindResourceCreated,
			Title: "New Resource Available",
			Body:  lines(body...),
		}, true

	case domain.EventResourceDeleted:
		return Content{
			Kind:  domain.KindResourceDeleted,
			Title: "Resource Removed",
			Body: lines(
				"A resource has been removed from the library.",
				"",
				"Resource ID: "+p.Text("id", missing),
				"",
				"If you had any bookings for this resource, please contact support.",
			),
		}, true

	case domain.EventPolicyCreated:
		return Content{
			Kind:  domain.KindPolicyCreated,
			Title: "New Booking Policy",
			Body: lines(
				"A new booking policy has been implemented.",
				"",
				"Policy: "+p.Text("name", "New Policy"),
				"",
				"Please review the updated policies before making your next booking.",
			),
		}, true

	case domain.EventPolicyUpdated:
		return Content{
			Kind:  domain.KindPolicyUpdated,
			Title: "Booking Policy Updated",
			Body: lines(
				"A booking policy has been updated.",
				"",
				"Policy: "+p.Text("name", "Policy"),
				"",
				"Please review the updated policy details before making your next booking.",
			),
		}, true

	case domain.EventPolicyDeleted:
		return Content{
			Kind:  domain.KindPolicyDeleted,
			Title: "Booking Policy Removed",
			Body: lines(
				"A booking policy has been removed.",
				"",
				"Policy ID: "+p.Text("id", missing),
				"",
				"Please check the current policies before making your next booking.",
			),
		}, true
	}
	return Content{}, false
}

func lines(l ...string) string {
	return strings.Join(l, "\n")
}
