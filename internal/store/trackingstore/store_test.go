package trackingstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeMeta struct {
	m        map[string][]byte
	setCalls int
	delCalls int
}

func newFakeMeta() *fakeMeta { return &fakeMeta{m: map[string][]byte{}} }

func (f *fakeMeta) key(orderID uint64, key string) string {
	return fmt.Sprintf("%d/%s", orderID, key)
}

func (f *fakeMeta) GetMeta(ctx context.Context, orderID uint64, key string) ([]byte, bool, error) {
	b, ok := f.m[f.key(orderID, key)]
	return b, ok, nil
}

func (f *fakeMeta) SetMeta(ctx context.Context, orderID uint64, key string, value []byte) error {
	f.setCalls++
	f.m[f.key(orderID, key)] = value
	return nil
}

func (f *fakeMeta) DeleteMeta(ctx context.Context, orderID uint64, key string) error {
	f.delCalls++
	delete(f.m, f.key(orderID, key))
	return nil
}

type fakeNotifier struct {
	calls   int
	orderID uint64
	items   []models.TrackingItem
}

func (f *fakeNotifier) TrackingChanged(ctx context.Context, orderID uint64, items []models.TrackingItem) error {
	f.calls++
	f.orderID = orderID
	f.items = items
	return nil
}

func TestSanitize_DropsEmptyTrackingNumber(t *testing.T) {
	out := Sanitize([]models.TrackingItem{
		{TrackingNumber: ""},
		{TrackingNumber: "   "},
		{TrackingNumber: "1Z999AA10123456784"},
	})
	require.Len(t, out, 1)
	require.Equal(t, "1Z999AA10123456784", out[0].TrackingNumber)
}

func TestSanitize_BackfillsCarrierFields(t *testing.T) {
	out := Sanitize([]models.TrackingItem{{TrackingNumber: "1Z999AA10123456784"}})
	require.Len(t, out, 1)
	require.Equal(t, "ups", out[0].CarrierID)
	require.Equal(t, "UPS", out[0].CarrierName)
	require.Equal(t, "https://www.ups.com/track?tracknum=1Z999AA10123456784", out[0].TrackingURL)
}

func TestSanitize_UnknownCarrierStaysEmpty(t *testing.T) {
	out := Sanitize([]models.TrackingItem{{TrackingNumber: "weird-number-1"}})
	require.Len(t, out, 1)
	require.Equal(t, "", out[0].CarrierID)
	require.Equal(t, "", out[0].CarrierName)
	require.Equal(t, "", out[0].TrackingURL)
}

func TestSanitize_KeepsExplicitFields(t *testing.T) {
	out := Sanitize([]models.TrackingItem{{
		CarrierID:      "Custom",
		CarrierName:    "  My Courier ",
		TrackingNumber: " X1 ",
		Status:         "In_Transit",
		StatusLabel:    "In Transit",
	}})
	require.Len(t, out, 1)
	require.Equal(t, "custom", out[0].CarrierID)
	require.Equal(t, "My Courier", out[0].CarrierName)
	require.Equal(t, "X1", out[0].TrackingNumber)
	require.Equal(t, "in_transit", out[0].Status)
	require.Equal(t, "In Transit", out[0].StatusLabel)
}

func TestNormalizeTrackingURL(t *testing.T) {
	// Обрезка по последнему вхождению схемы (артефакт конкатенации).
	require.Equal(t,
		"http://good.example/x",
		NormalizeTrackingURL("foo=1http://bad.example/http://good.example/x"))

	require.Equal(t, "https://ok.example/a", NormalizeTrackingURL("https://ok.example/a"))
	require.Equal(t, "http://host.example", NormalizeTrackingURL("host.example"))
	require.Equal(t, "", NormalizeTrackingURL(""))
	require.Equal(t, "", NormalizeTrackingURL("ftp://host.example/file"))
}

func TestService_SetItems_Idempotent(t *testing.T) {
	meta := newFakeMeta()
	n := &fakeNotifier{}
	s := New(meta, n, true)
	ctx := context.Background()

	raw := []models.TrackingItem{{TrackingNumber: "1Z999AA10123456784"}}

	_, changed, err := s.SetItems(ctx, 10, raw)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, meta.setCalls)
	require.Equal(t, 1, n.calls)
	require.Equal(t, uint64(10), n.orderID)

	// Повтор с тем же списком: ни записи, ни события.
	_, changed, err = s.SetItems(ctx, 10, raw)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, meta.setCalls)
	require.Equal(t, 1, n.calls)
}

func TestService_SetItems_EmptyOnEmptyIsNoop(t *testing.T) {
	meta := newFakeMeta()
	n := &fakeNotifier{}
	s := New(meta, n, true)

	_, changed, err := s.SetItems(context.Background(), 10, nil)
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, meta.setCalls)
	require.Zero(t, meta.delCalls)
	require.Zero(t, n.calls)
}

func TestService_SetItems_EmptyClearsExisting(t *testing.T) {
	meta := newFakeMeta()
	n := &fakeNotifier{}
	s := New(meta, n, true)
	ctx := context.Background()

	_, _, err := s.SetItems(ctx, 10, []models.TrackingItem{{TrackingNumber: "A1"}})
	require.NoError(t, err)

	_, changed, err := s.SetItems(ctx, 10, nil)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, meta.delCalls)
	// Удаление не считается "tracking changed".
	require.Equal(t, 1, n.calls)

	items, err := s.GetItems(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestService_SetItems_SingleMode(t *testing.T) {
	meta := newFakeMeta()
	s := New(meta, nil, false)

	items, changed, err := s.SetItems(context.Background(), 10, []models.TrackingItem{
		{TrackingNumber: "A1"},
		{TrackingNumber: "B2"},
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, items, 1)
	require.Equal(t, "A1", items[0].TrackingNumber)
}

func TestService_GetItems_MissingAndCorrupt(t *testing.T) {
	meta := newFakeMeta()
	s := New(meta, nil, true)
	ctx := context.Background()

	items, err := s.GetItems(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, items)

	require.NoError(t, meta.SetMeta(ctx, 42, MetaKeyTrackingItems, []byte("{not json")))
	items, err = s.GetItems(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestService_ReplaceItems_NoEvent(t *testing.T) {
	meta := newFakeMeta()
	n := &fakeNotifier{}
	s := New(meta, n, true)
	ctx := context.Background()

	items := []models.TrackingItem{{TrackingNumber: "A1", Status: "in_transit", StatusLabel: "In Transit"}}
	require.NoError(t, s.ReplaceItems(ctx, 10, items))
	require.Zero(t, n.calls)

	var stored []models.TrackingItem
	b, ok, err := meta.GetMeta(ctx, 10, MetaKeyTrackingItems)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(b, &stored))
	require.Equal(t, "in_transit", stored[0].Status)
}
