package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/platform/auth"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	Events           int    `json:"events"`
	PatientsPerEvent int    `json:"patients_per_event"`
	Seed             int64  `json:"seed"`
	OperatorPassword string `json:"-"`
	// BcryptCost defaults to bcrypt.DefaultCost. Tests lower it.
	BcryptCost int `json:"-"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Events:           3,
		PatientsPerEvent: 20,
		Seed:             42,
		OperatorPassword: "password",
	}
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Operators     int           `json:"operators"`
	Events        int           `json:"events"`
	Patients      int           `json:"patients"`
	Registrations int           `json:"registrations"`
	Duration      time.Duration `json:"duration"`
}

var (
	givenNames = []string{
		"Aisha", "Daniel", "Mei Ling", "Arjun", "Siti", "Wei Jie", "Priya",
		"Hafiz", "Grace", "Ravi", "Nurul", "Jun Hao", "Kavitha", "Amir",
		"Sarah", "Kumar", "Farah", "Yong", "Lakshmi", "Zainal", "Hui Min",
		"Rajesh", "Aminah", "Chen", "Deepa", "Irfan",
	}
	familyNames = []string{
		"Abdullah", "Tan", "Lim", "Raj", "Ismail", "Wong", "Nair", "Lee",
		"Hassan", "Ng", "Pillai", "Rahman", "Chong", "Singh", "Ahmad", "Goh",
		"Menon", "Yusof", "Teo", "Krishnan",
	}
	venues = []string{
		"Community Hall", "Primary School", "Health Clinic", "Mosque Annex",
		"Temple Hall", "Town Library", "Sports Centre", "Church Hall",
	}
	towns = []string{
		"Kampung Baru", "Taman Desa", "Bukit Indah", "Seri Kembangan",
		"Sungai Petani", "Batu Pahat", "Kuala Selangor", "Tanjung Malim",
	}
	eventStatuses = []string{"completed", "ongoing", "scheduled"}
)

// DataGenerator produces deterministic synthetic screening data.
type DataGenerator struct {
	rng     *rand.Rand
	counter map[string]int64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		counter: make(map[string]int64),
	}
}

func (g *DataGenerator) nextID(kind string) int64 {
	g.counter[kind]++
	return g.counter[kind]
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) time.Time {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := time.Month(1 + g.rng.Intn(12))
	d := 1 + g.rng.Intn(28)
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("01%d-%03d %04d", g.rng.Intn(10), g.rng.Intn(1000), g.rng.Intn(10000))
}

// GenerateEvent spreads events a week apart, the earliest ones completed.
func (g *DataGenerator) GenerateEvent(index int) registration.Event {
	start := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*index)
	status := eventStatuses[len(eventStatuses)-1]
	if index < len(eventStatuses) {
		status = eventStatuses[index]
	}
	town := g.pick(towns)
	return registration.Event{
		ID:        g.nextID("event"),
		Name:      fmt.Sprintf("Vision Screening %s", town),
		Location:  fmt.Sprintf("%s, %s", g.pick(venues), town),
		StartDate: start.Format("2006-01-02"),
		EndDate:   start.AddDate(0, 0, 1).Format("2006-01-02"),
		Status:    status,
	}
}

func (g *DataGenerator) GeneratePatient() registration.Patient {
	dob := g.randomDate(1945, 2019)
	gender := "female"
	if g.rng.Intn(2) == 0 {
		gender = "male"
	}
	return registration.Patient{
		ID:             g.nextID("patient"),
		Name:           g.pick(givenNames) + " " + g.pick(familyNames),
		IdentityNumber: fmt.Sprintf("%s-%02d-%04d", dob.Format("060102"), 1+g.rng.Intn(16), g.rng.Intn(10000)),
		DateOfBirth:    dob.Format("2006-01-02"),
		Gender:         gender,
		Phone:          g.randomPhone(),
	}
}

func (g *DataGenerator) GenerateRegistration(ev registration.Event, pt registration.Patient) registration.Registration {
	id := g.nextID("registration")
	status := registration.StatusRegistered
	if ev.Status == "completed" && g.rng.Intn(10) == 0 {
		status = registration.StatusAbsent
	}
	return registration.Registration{
		ID:               id,
		PatientID:        pt.ID,
		EventID:          ev.ID,
		ReferenceNumber:  fmt.Sprintf("EVT%03d-%05d", ev.ID, id),
		AttendanceStatus: status,
	}
}

// Seeder builds a Dataset from a SeedConfig.
type Seeder struct {
	config SeedConfig
}

func NewSeeder(config SeedConfig) *Seeder {
	def := DefaultSeedConfig()
	if config.Events <= 0 {
		config.Events = def.Events
	}
	if config.PatientsPerEvent <= 0 {
		config.PatientsPerEvent = def.PatientsPerEvent
	}
	if config.OperatorPassword == "" {
		config.OperatorPassword = def.OperatorPassword
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Seeder{config: config}
}

// Operators are fixed so demo credentials stay stable across runs.
func (s *Seeder) operators() ([]Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.config.OperatorPassword), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	ops := []Operator{
		{ID: 1, Name: "Sandbox Admin", Email: "admin@screening.test", Role: auth.RoleAdmin},
		{ID: 2, Name: "Field Operator", Email: "operator@screening.test", Role: auth.RoleOperator},
		{ID: 3, Name: "Read Only", Email: "viewer@screening.test", Role: auth.RoleViewer},
	}
	for i := range ops {
		ops[i].PasswordHash = string(hash)
	}
	return ops, nil
}

// Generate is deterministic for a given seed, apart from password salts.
func (s *Seeder) Generate() (*Dataset, *SeedResult, error) {
	start := time.Now()
	g := NewDataGenerator(s.config.Seed)

	ops, err := s.operators()
	if err != nil {
		return nil, nil, err
	}
	ds := &Dataset{Operators: ops}

	for i := 0; i < s.config.Events; i++ {
		ev := g.GenerateEvent(i)
		ds.Events = append(ds.Events, ev)
		for j := 0; j < s.config.PatientsPerEvent; j++ {
			pt := g.GeneratePatient()
			ds.Patients = append(ds.Patients, pt)
			ds.Registrations = append(ds.Registrations, g.GenerateRegistration(ev, pt))
		}
	}

	return ds, &SeedResult{
		Operators:     len(ds.Operators),
		Events:        len(ds.Events),
		Patients:      len(ds.Patients),
		Registrations: len(ds.Registrations),
		Duration:      time.Since(start),
	}, nil
}

// Run generates a dataset and writes it to store.
func (s *Seeder) Run(ctx context.Context, store Store) (*SeedResult, error) {
	ds, result, err := s.Generate()
	if err != nil {
		return nil, err
	}
	if err := store.Seed(ctx, ds); err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}
	return result, nil
}

// SeedHandler lets an admin reset the sandbox over HTTP.
type SeedHandler struct {
	store    Store
	defaults SeedConfig
}

func NewSeedHandler(store Store, defaults SeedConfig) *SeedHandler {
	return &SeedHandler{store: store, defaults: defaults}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed, auth.RequireRole(auth.RoleAdmin))
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := h.defaults
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request.")
	}
	errs := map[string][]string{}
	if cfg.Events > 20 {
		errs["events"] = []string{"may not be greater than 20"}
	}
	if cfg.PatientsPerEvent > 500 {
		errs["patients_per_event"] = []string{"may not be greater than 500"}
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}
	result, err := NewSeeder(cfg).Run(c.Request().Context(), h.store)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Sandbox reseeded.")
}
