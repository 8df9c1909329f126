package clinic

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	specialtiesFile  = "specialties.csv"
	doctorsFile      = "doctors.csv"
	profilesFile     = "profiles.csv"
	appointmentsFile = "appointments.csv"
)

// CSVStore is the flat-file backend. All files live under one directory; an
// absent file reads as an empty result, never an error. Writes are serialized
// by a mutex, and the duplicate-appointment check runs inside the same
// critical section as the append.
type CSVStore struct {
	dir string
	loc *time.Location
	mu  sync.Mutex
}

func NewCSVStore(dir string, loc *time.Location) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv store dir: %w", err)
	}
	return &CSVStore{dir: dir, loc: loc}, nil
}

var _ Store = (*CSVStore)(nil)

type csvAppointment struct {
	id           uuid.UUID
	doctorID     int64
	patientPhone string
	at           time.Time
}

func (s *CSVStore) readRows(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return rows, nil
}

func (s *CSVStore) writeRows(name string, rows [][]string) error {
	tmp := filepath.Join(s.dir, name+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *CSVStore) readAppointments() ([]csvAppointment, error) {
	rows, err := s.readRows(appointmentsFile)
	if err != nil {
		return nil, err
	}

	result := make([]csvAppointment, 0, len(rows))
	for _, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("%s: malformed row %v", appointmentsFile, row)
		}
		id, err := uuid.Parse(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s: bad appointment id %q: %w", appointmentsFile, row[0], err)
		}
		doctorID, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad doctor id %q: %w", appointmentsFile, row[1], err)
		}
		at, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return nil, fmt.Errorf("%s: bad timestamp %q: %w", appointmentsFile, row[3], err)
		}
		result = append(result, csvAppointment{
			id:           id,
			doctorID:     doctorID,
			patientPhone: row[2],
			at:           Normalize(at, s.loc),
		})
	}
	return result, nil
}

func (s *CSVStore) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := s.readRows(specialtiesFile)
	if err != nil {
		return nil, err
	}
	result := make([]Specialty, 0, len(rows))
	for _, row := range rows {
		if len(row) < 1 || row[0] == "" {
			continue
		}
		result = append(result, Specialty{Name: row[0]})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func (s *CSVStore) readDoctors() ([]Doctor, error) {
	rows, err := s.readRows(doctorsFile)
	if err != nil {
		return nil, err
	}
	result := make([]Doctor, 0, len(rows))
	for _, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("%s: malformed row %v", doctorsFile, row)
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad doctor id %q: %w", doctorsFile, row[0], err)
		}
		exp, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("%s: bad experience %q: %w", doctorsFile, row[3], err)
		}
		result = append(result, Doctor{ID: id, Name: row[1], Specialty: row[2], Experience: exp})
	}
	return result, nil
}

func (s *CSVStore) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	doctors, err := s.readDoctors()
	if err != nil {
		return nil, err
	}
	var result []Doctor
	for _, d := range doctors {
		if d.Specialty == specialty {
			result = append(result, d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Experience > result[j].Experience })
	return result, nil
}

func (s *CSVStore) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	doctors, err := s.readDoctors()
	if err != nil {
		return nil, err
	}
	for _, d := range doctors {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (s *CSVStore) ListBookedTimes(ctx context.Context, doctorID int64, day time.Time) ([]time.Time, error) {
	appts, err := s.readAppointments()
	if err != nil {
		return nil, err
	}
	key := DayKey(day, s.loc)

	var result []time.Time
	for _, a := range appts {
		if a.doctorID == doctorID && DayKey(a.at, s.loc) == key {
			result = append(result, a.at)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Before(result[j]) })
	return result, nil
}

func (s *CSVStore) ListDayAppointments(ctx context.Context, doctorID int64, day time.Time) ([]DayAppointment, error) {
	appts, err := s.readAppointments()
	if err != nil {
		return nil, err
	}
	profiles, err := s.readProfiles()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.Phone] = p.Name
	}

	key := DayKey(day, s.loc)
	var result []DayAppointment
	for _, a := range appts {
		if a.doctorID != doctorID || DayKey(a.at, s.loc) != key {
			continue
		}
		name := names[a.patientPhone]
		if name == "" {
			name = a.patientPhone
		}
		result = append(result, DayAppointment{At: a.at, PatientName: name})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].At.Before(result[j].At) })
	return result, nil
}

func (s *CSVStore) InsertAppointment(ctx context.Context, doctorID int64, phone string, at time.Time) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = Normalize(at, s.loc)
	key := DayKey(at, s.loc)

	appts, err := s.readAppointments()
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if a.patientPhone == phone && a.doctorID == doctorID && DayKey(a.at, s.loc) == key {
			return nil, ErrDuplicateAppointment
		}
	}

	id := uuid.New()
	rows := make([][]string, 0, len(appts)+1)
	for _, a := range appts {
		rows = append(rows, appointmentRow(a.id, a.doctorID, a.patientPhone, a.at))
	}
	rows = append(rows, appointmentRow(id, doctorID, phone, at))

	if err := s.writeRows(appointmentsFile, rows); err != nil {
		return nil, err
	}
	return &Appointment{ID: id, DoctorID: doctorID, PatientPhone: phone, At: at}, nil
}

func appointmentRow(id uuid.UUID, doctorID int64, phone string, at time.Time) []string {
	return []string{
		id.String(),
		strconv.FormatInt(doctorID, 10),
		phone,
		at.Format(time.RFC3339),
	}
}

func (s *CSVStore) readProfiles() ([]Profile, error) {
	rows, err := s.readRows(profilesFile)
	if err != nil {
		return nil, err
	}
	result := make([]Profile, 0, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("%s: malformed row %v", profilesFile, row)
		}
		age, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s: bad age %q: %w", profilesFile, row[2], err)
		}
		result = append(result, Profile{Phone: row[0], Name: row[1], Age: age})
	}
	return result, nil
}

func (s *CSVStore) FindProfile(ctx context.Context, phone string) (*Profile, error) {
	profiles, err := s.readProfiles()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Phone == phone {
			return &p, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *CSVStore) UpsertProfile(ctx context.Context, phone, name string, age int) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readProfiles()
	if err != nil {
		return nil, err
	}

	updated := false
	for i := range profiles {
		if profiles[i].Phone == phone {
			profiles[i].Name = name
			profiles[i].Age = age
			updated = true
			break
		}
	}
	if !updated {
		profiles = append(profiles, Profile{Phone: phone, Name: name, Age: age})
	}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{p.Phone, p.Name, strconv.Itoa(p.Age)})
	}
	if err := s.writeRows(profilesFile, rows); err != nil {
		return nil, err
	}
	return &Profile{Phone: phone, Name: name, Age: age}, nil
}

func (s *CSVStore) FindDayBooking(ctx context.Context, phone string, doctorID int64, day time.Time) (*Appointment, error) {
	appts, err := s.readAppointments()
	if err != nil {
		return nil, err
	}
	key := DayKey(day, s.loc)
	for _, a := range appts {
		if a.patientPhone == phone && a.doctorID == doctorID && DayKey(a.at, s.loc) == key {
			return &Appointment{ID: a.id, DoctorID: a.doctorID, PatientPhone: a.patientPhone, At: a.at}, nil
		}
	}
	return nil, nil
}
