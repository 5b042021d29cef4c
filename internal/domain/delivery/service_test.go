package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	byOrder map[string]*Delivery
	updated *Delivery
}

func (m *mockRepo) GetByOrderID(_ context.Context, orderID string) (*Delivery, error) {
	d, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, d *Delivery) error {
	m.updated = d
	return nil
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	d := New("d1", "o1", fixedNow)
	d.UserID = "u1"
	repo := &mockRepo{byOrder: map[string]*Delivery{"o1": d}}
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	return svc, repo
}

func TestNew(t *testing.T) {
	d := New("d1", "o1", fixedNow)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), d.EstimatedAt)
	assert.Equal(t, "TechStore Express", d.Carrier)
	assert.Equal(t, StatusAwaitingShipment, d.Status)
	assert.Nil(t, d.DeliveredAt)
}

func TestService_GetForUser(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.GetForUser(context.Background(), "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)

	_, err = svc.GetForUser(context.Background(), "u2", "o1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetForUser(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Update(t *testing.T) {
	status := func(s Status) *Status { return &s }
	str := func(s string) *string { return &s }

	tests := []struct {
		name          string
		update        Update
		wantErr       error
		wantStatus    Status
		wantCarrier   string
		wantTracking  string
		wantDelivered bool
	}{
		{
			name:         "in transit with tracking",
			update:       Update{Status: status(StatusInTransit), TrackingCode: str("BR123")},
			wantStatus:   StatusInTransit,
			wantCarrier:  DefaultCarrier,
			wantTracking: "BR123",
		},
		{
			name:          "delivered stamps time",
			update:        Update{Status: status(StatusDelivered)},
			wantStatus:    StatusDelivered,
			wantCarrier:   DefaultCarrier,
			wantDelivered: true,
		},
		{
			name:        "empty carrier is ignored",
			update:      Update{Carrier: str("")},
			wantStatus:  StatusAwaitingShipment,
			wantCarrier: DefaultCarrier,
		},
		{
			name:    "unknown status",
			update:  Update{Status: status("TELEPORTED")},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()

			d, err := svc.Update(context.Background(), "o1", tt.update)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, repo.updated)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, d.Status)
			assert.Equal(t, tt.wantCarrier, d.Carrier)
			assert.Equal(t, tt.wantTracking, d.TrackingCode)
			if tt.wantDelivered {
				require.NotNil(t, d.DeliveredAt)
				assert.Equal(t, fixedNow.Add(48*time.Hour), *d.DeliveredAt)
			} else {
				assert.Nil(t, d.DeliveredAt)
			}
		})
	}
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Update(context.Background(), "nope", Update{})
	require.ErrorIs(t, err, ErrNotFound)
}
