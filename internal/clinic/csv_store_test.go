package clinic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSVStore(t *testing.T) (*CSVStore, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	store, err := NewCSVStore(t.TempDir(), loc)
	require.NoError(t, err)
	return store, loc
}

func writeFixture(t *testing.T, store *CSVStore, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, name), []byte(content), 0o644))
}

func TestCSVStore_AbsentFilesReadEmpty(t *testing.T) {
	store, loc := newTestCSVStore(t)
	ctx := context.Background()
	day := time.Date(2025, 9, 10, 0, 0, 0, 0, loc)

	specs, err := store.ListSpecialties(ctx)
	require.NoError(t, err)
	assert.Empty(t, specs)

	booked, err := store.ListBookedTimes(ctx, 5, day)
	require.NoError(t, err)
	assert.Empty(t, booked)

	appts, err := store.ListDayAppointments(ctx, 5, day)
	require.NoError(t, err)
	assert.Empty(t, appts)

	_, err = store.FindProfile(ctx, "9999999999")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	existing, err := store.FindDayBooking(ctx, "9999999999", 5, day)
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestCSVStore_SpecialtiesAndDoctors(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	writeFixture(t, store, specialtiesFile, "Dermatology\nCardiology\n")
	writeFixture(t, store, doctorsFile,
		"1,Meera Iyer,Cardiology,12\n"+
			"2,Arjun Nair,Cardiology,25\n"+
			"3,Sana Khan,Dermatology,8\n")

	specs, err := store.ListSpecialties(ctx)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Cardiology", specs[0].Name, "specialties sort by name")

	doctors, err := store.ListDoctorsBySpecialty(ctx, "Cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Arjun Nair", doctors[0].Name, "doctors sort by descending experience")
	assert.Equal(t, 25, doctors[0].Experience)

	d, err := store.GetDoctor(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Sana Khan", d.Name)

	_, err = store.GetDoctor(ctx, 99)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestCSVStore_ProfileUpsertRoundTrip(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	_, err := store.UpsertProfile(ctx, "9999999999", "Asha Rao", 34)
	require.NoError(t, err)

	p, err := store.FindProfile(ctx, "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", p.Name)
	assert.Equal(t, 34, p.Age)

	// Second upsert overwrites, never duplicates.
	_, err = store.UpsertProfile(ctx, "9999999999", "Asha R. Rao", 35)
	require.NoError(t, err)

	p, err = store.FindProfile(ctx, "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "Asha R. Rao", p.Name)
	assert.Equal(t, 35, p.Age)

	profiles, err := store.readProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestCSVStore_InsertAndReadBackNormalized(t *testing.T) {
	store, loc := newTestCSVStore(t)
	ctx := context.Background()

	// Write through the store with a noisy instant: off-zone with seconds
	// and sub-second precision. It must come back pinned to the configured
	// zone at minute precision, comparing equal to the clean local slot.
	noisy := time.Date(2025, 9, 10, 4, 30, 17, 250_000_000, time.UTC) // 10:00:17.25 IST
	slot := time.Date(2025, 9, 10, 10, 0, 0, 0, loc)

	appt, err := store.InsertAppointment(ctx, 5, "9999999999", noisy)
	require.NoError(t, err)
	assert.True(t, appt.At.Equal(slot))

	day := time.Date(2025, 9, 10, 0, 0, 0, 0, loc)
	booked, err := store.ListBookedTimes(ctx, 5, day)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.True(t, booked[0].Equal(slot), "stored slot must compare equal to the generated one")
}

func TestCSVStore_DuplicateInsertRejected(t *testing.T) {
	store, loc := newTestCSVStore(t)
	ctx := context.Background()

	first := time.Date(2025, 9, 10, 10, 0, 0, 0, loc)
	_, err := store.InsertAppointment(ctx, 5, "9999999999", first)
	require.NoError(t, err)

	// Same patient, same doctor, same day, different slot time.
	_, err = store.InsertAppointment(ctx, 5, "9999999999", first.Add(15*time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateAppointment)

	// Different doctor and different day are both fine.
	_, err = store.InsertAppointment(ctx, 6, "9999999999", first)
	require.NoError(t, err)
	_, err = store.InsertAppointment(ctx, 5, "9999999999", first.AddDate(0, 0, 1))
	require.NoError(t, err)
}

func TestCSVStore_FindDayBookingIgnoresSlotTime(t *testing.T) {
	store, loc := newTestCSVStore(t)
	ctx := context.Background()

	at := time.Date(2025, 9, 10, 10, 0, 0, 0, loc)
	_, err := store.InsertAppointment(ctx, 5, "9999999999", at)
	require.NoError(t, err)

	// Probe with a different time on the same day.
	probe := time.Date(2025, 9, 10, 16, 45, 0, 0, loc)
	existing, err := store.FindDayBooking(ctx, "9999999999", 5, probe)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.True(t, existing.At.Equal(at))

	other, err := store.FindDayBooking(ctx, "8888888888", 5, probe)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCSVStore_ListDayAppointmentsJoinsNamesAscending(t *testing.T) {
	store, loc := newTestCSVStore(t)
	ctx := context.Background()

	_, err := store.UpsertProfile(ctx, "9999999999", "Asha Rao", 34)
	require.NoError(t, err)
	_, err = store.UpsertProfile(ctx, "8888888888", "Vikram Shah", 41)
	require.NoError(t, err)

	later := time.Date(2025, 9, 10, 14, 15, 0, 0, loc)
	earlier := time.Date(2025, 9, 10, 9, 30, 0, 0, loc)
	_, err = store.InsertAppointment(ctx, 5, "9999999999", later)
	require.NoError(t, err)
	_, err = store.InsertAppointment(ctx, 5, "8888888888", earlier)
	require.NoError(t, err)

	day := time.Date(2025, 9, 10, 0, 0, 0, 0, loc)
	appts, err := store.ListDayAppointments(ctx, 5, day)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "Vikram Shah", appts[0].PatientName)
	assert.Equal(t, "Asha Rao", appts[1].PatientName)
	assert.True(t, appts[0].At.Before(appts[1].At))
}
