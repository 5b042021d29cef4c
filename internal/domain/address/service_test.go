package address

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	byID    map[string]*Address
	created *Address
	updated *Address
}

func newMockRepo(addrs ...Address) *mockRepo {
	m := &mockRepo{byID: make(map[string]*Address)}
	for i := range addrs {
		m.byID[addrs[i].ID] = &addrs[i]
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, a *Address) error {
	m.created = a
	return nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID string) ([]Address, error) {
	var out []Address
	for _, a := range m.byID {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockRepo) Get(_ context.Context, userID, id string) (*Address, error) {
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Address) error {
	m.updated = a
	return nil
}

func (m *mockRepo) Delete(_ context.Context, userID, id string) error {
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockLocator struct {
	got string
	loc *Location
	err error
}

func (m *mockLocator) Lookup(_ context.Context, cep string) (*Location, error) {
	m.got = cep
	return m.loc, m.err
}

func sampleAddress() Address {
	return Address{
		PostalCode: "01310-100",
		Street:     "Avenida Paulista",
		District:   "Bela Vista",
		City:       "Sao Paulo",
		State:      "SP",
		Number:     "1000",
	}
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "01310-100", want: "01310100"},
		{in: "01310100", want: "01310100"},
		{in: " 01310-100 ", want: "01310100"},
		{in: "0131-0100", wantErr: true},
		{in: "abcde-123", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePostalCode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPostalCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_LookupPostalCode(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		loc := &mockLocator{loc: &Location{PostalCode: "01310-100", City: "Sao Paulo", State: "SP"}}
		svc := NewService(newMockRepo(), loc)

		got, err := svc.LookupPostalCode(context.Background(), "01310-100")
		require.NoError(t, err)
		assert.Equal(t, "01310100", loc.got)
		assert.Equal(t, "Sao Paulo", got.City)
	})

	t.Run("invalid format never reaches the locator", func(t *testing.T) {
		loc := &mockLocator{}
		svc := NewService(newMockRepo(), loc)

		_, err := svc.LookupPostalCode(context.Background(), "123")
		require.ErrorIs(t, err, ErrInvalidPostalCode)
		assert.Empty(t, loc.got)
	})

	t.Run("unknown", func(t *testing.T) {
		svc := NewService(newMockRepo(), &mockLocator{err: ErrPostalCodeNotFound})
		_, err := svc.LookupPostalCode(context.Background(), "99999-999")
		require.ErrorIs(t, err, ErrPostalCodeNotFound)
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc := NewService(newMockRepo(), &mockLocator{err: errors.New("timeout")})
		_, err := svc.LookupPostalCode(context.Background(), "99999-999")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup postal code")
	})
}

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockLocator{})

	a := sampleAddress()
	a.Primary = true
	got, err := svc.Create(context.Background(), "u1", a)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Primary)
	assert.Same(t, repo.created, got)

	missing := sampleAddress()
	missing.Number = ""
	_, err = svc.Create(context.Background(), "u1", missing)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestService_Update(t *testing.T) {
	existing := sampleAddress()
	existing.ID = "a1"
	existing.UserID = "u1"
	existing.Complement = "apto 12"

	t.Run("partial", func(t *testing.T) {
		repo := newMockRepo(existing)
		svc := NewService(repo, &mockLocator{})

		empty := ""
		primary := true
		number := "2000"
		got, err := svc.Update(context.Background(), "u1", "a1", Update{
			Street:     &empty,
			Complement: &empty,
			Number:     &number,
			Primary:    &primary,
		})
		require.NoError(t, err)
		assert.Equal(t, "Avenida Paulista", got.Street, "empty string keeps required field")
		assert.Empty(t, got.Complement, "optional field can be cleared")
		assert.Equal(t, "2000", got.Number)
		assert.True(t, got.Primary)
		require.NotNil(t, repo.updated)
	})

	t.Run("other user", func(t *testing.T) {
		svc := NewService(newMockRepo(existing), &mockLocator{})
		_, err := svc.Update(context.Background(), "u2", "a1", Update{})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	existing := sampleAddress()
	existing.ID = "a1"
	existing.UserID = "u1"
	svc := NewService(newMockRepo(existing), &mockLocator{})

	require.ErrorIs(t, svc.Delete(context.Background(), "u2", "a1"), ErrNotFound)
	require.NoError(t, svc.Delete(context.Background(), "u1", "a1"))

	list, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
