package eventmap

import (
	"errors"
	"testing"

	"github.com/go-notification-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, body string) Payload {
	t.Helper()
	p, err := Decode([]byte(body))
	require.NoError(t, err)
	return p
}

func TestDecode_Object(t *testing.T) {
	p := mustDecode(t, `{"id":55,"resourceId":12,"userId":3,"checkedInAt":"2024-01-01T10:00:00"}`)
	assert.Equal(t, "55", p.Text("id", ""))
	id, ok := p.RecipientID()
	require.True(t, ok)
	assert.Equal(t, "3", id)
}

func TestDecode_BareIdentifier(t *testing.T) {
	p := mustDecode(t, `42`)
	assert.Equal(t, "42", p.Text("id", ""))

	p = mustDecode(t, `"abc"`)
	assert.Equal(t, "abc", p.Text("id", ""))
}

func TestDecode_Rejects(t *testing.T) {
	for _, body := range []string{``, `null`, `[1,2]`, `{"id":`, `true`} {
		_, err := Decode([]byte(body))
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), body)
	}
}

func TestRecipientID_Missing(t *testing.T) {
	_, ok := mustDecode(t, `{"id":1}`).RecipientID()
	assert.False(t, ok)
	_, ok = mustDecode(t, `{"id":1,"userId":null}`).RecipientID()
	assert.False(t, ok)
}

func TestMap_ResourceCreatedFloor(t *testing.T) {
	c, ok := Map(domain.EventResourceCreated, mustDecode(t, `{"name":"Room A","type":"Study Room"}`))
	require.True(t, ok)
	assert.Equal(t, domain.KindResourceCreated, c.Kind)
	assert.NotContains(t, c.Body, "Floor")
	assert.Contains(t, c.Body, "Room A")
	assert.Contains(t, c.Body, "Study Room")

	c, _ = Map(domain.EventResourceCreated, mustDecode(t, `{"name":"Room A","type":"Study Room","floor":3}`))
	assert.Contains(t, c.Body, "Floor: 3")

	c, _ = Map(domain.EventResourceCreated, mustDecode(t, `{"name":"Room A","floor":null}`))
	assert.NotContains(t, c.Body, "Floor")
}

func TestMap_ResourceCreatedFallbacks(t *testing.T) {
	c, _ := Map(domain.EventResourceCreated, Payload{})
	assert.Contains(t, c.Body, "A new Resource has been added")
	assert.Contains(t, c.Body, "Resource: Unknown")
}

func TestMap_PolicyNameFallbacks(t *testing.T) {
	c, _ := Map(domain.EventPolicyCreated, Payload{})
	assert.Equal(t, "New Booking Policy", c.Title)
	assert.Contains(t, c.Body, "Policy: New Policy")

	c, _ = Map(domain.EventPolicyUpdated, Payload{"name": nil})
	assert.Contains(t, c.Body, "Policy: Policy")

	c, _ = Map(domain.EventPolicyUpdated, mustDecode(t, `{"id":4,"name":"Quiet Hours"}`))
	assert.Contains(t, c.Body, "Policy: Quiet Hours")
}

func TestMap_Bookings(t *testing.T) {
	p := mustDecode(t, `{"id":55,"resourceId":12,"userId":3,"startTime":"2024-01-01T09:00:00","endTime":"2024-01-01T11:00:00","qrCode":"QR-XYZ","checkedInAt":"2024-01-01T10:00:00"}`)

	tests := []struct {
		event domain.EventKind
		kind  domain.Kind
		title string
		want  []string
	}{
		{domain.EventBookingCreated, domain.KindBookingConfirmed, "Booking Confirmed", []string{"55", "12", "2024-01-01T09:00:00", "2024-01-01T11:00:00", "QR-XYZ"}},
		{domain.EventBookingCanceled, domain.KindBookingCanceled, "Booking Canceled", []string{"55", "12", "2024-01-01T09:00:00 to 2024-01-01T11:00:00"}},
		{domain.EventBookingCheckedIn, domain.KindCheckInReminder, "Check-In Successful", []string{"55", "12", "2024-01-01T10:00:00"}},
		{domain.EventBookingNoShow, domain.KindNoShowAlert, "No-Show Alert", []string{"55", "12", "2024-01-01T09:00:00 to 2024-01-01T11:00:00"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			c, ok := Map(tt.event, p)
			require.True(t, ok)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.title, c.Title)
			for _, s := range tt.want {
				assert.Contains(t, c.Body, s)
			}
		})
	}
}

func TestMap_MissingBookingFields(t *testing.T) {
	c, ok := Map(domain.EventBookingCreated, Payload{})
	require.True(t, ok)
	assert.Contains(t, c.Body, "Booking ID: N/A")
	assert.Contains(t, c.Body, "Check-In Code: N/A")
}

func TestMap_Deletions(t *testing.T) {
	c, _ := Map(domain.EventResourceDeleted, mustDecode(t, `7`))
	assert.Equal(t, domain.KindResourceDeleted, c.Kind)
	assert.Contains(t, c.Body, "Resource ID: 7")

	c, _ = Map(domain.EventPolicyDeleted, mustDecode(t, `{"id":9}`))
	assert.Equal(t, "Booking Policy Removed", c.Title)
	assert.Contains(t, c.Body, "Policy ID: 9")
}

func TestMap_EveryKnownEvent(t *testing.T) {
	for _, k := range domain.EventKinds {
		c, ok := Map(k, Payload{})
		require.True(t, ok, k)
		assert.True(t, c.Kind.Valid(), k)
		assert.NotEmpty(t, c.Title, k)
		assert.Equal(t, k.Broadcast(), c.Kind.SystemConfiguration(), k)
	}
	_, ok := Map("booking.moved", Payload{})
	assert.False(t, ok)
}
