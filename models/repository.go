package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("username already exists")
)

type VisitRepository interface {
	CreateVisit(ctx context.Context, visit *Visit, actor string) error
	UpdateVisit(ctx context.Context, visit *Visit, actor string) error
	CloseVisit(ctx context.Context, id uint, actor string) (*Visit, bool, error)
	GetVisitByID(ctx context.Context, id uint) (*Visit, error)
	GetVisitsByIDs(ctx context.Context, ids []uint) ([]Visit, error)
	ListVisits(ctx context.Context, filter VisitFilter, limit, offset int) ([]Visit, int64, error)
	QueryVisits(ctx context.Context, filter VisitFilter) ([]Visit, error)
	CountVisitsByPerson(ctx context.Context, personIDs []uint) (map[uint]int64, error)
	Regions(ctx context.Context) ([]string, error)
}

type PersonRepository interface {
	ResolvePerson(ctx context.Context, nationalID, name, phone string) (*Person, error)
	GetPersonByNationalID(ctx context.Context, nationalID string) (*Person, error)
	ListVisitsByPerson(ctx context.Context, personID uint) ([]Visit, error)
	BackfillPersons(ctx context.Context) (BackfillResult, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByToken(ctx context.Context, key string) (*User, error)
	IssueToken(ctx context.Context, userID uint) (*Token, error)
	RevokeTokens(ctx context.Context, userID uint) error
}

type Repository interface {
	VisitRepository
	PersonRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// BackfillResult counts what BackfillPersons changed.
type BackfillResult struct {
	Created int
	Linked  int64
}

// GormRepository implements Repository on postgres or sqlite.
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a repository at open time.
type Option func(*gorm.Config)

// WithLogger sends gorm's slow-query and error reports to l. Without it they
// are discarded.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *gorm.Config) {
		cfg.Logger = gormLogger(l)
	}
}

func gormLogger(l *zap.Logger) logger.Interface {
	std, err := zap.NewStdLogAt(l.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		std = zap.NewStdLog(l.Named("gorm"))
	}
	return logger.New(std, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func NewPostgresRepository(dsn string, opts ...Option) (*GormRepository, error) {
	return newRepository(postgres.Open(dsn), opts)
}

// NewSQLiteRepository opens (or creates) a database file. Used by the desktop
// installation and by tests.
func NewSQLiteRepository(path string, opts ...Option) (*GormRepository, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	r, err := newRepository(sqlite.Open(dsn), opts)
	if err != nil {
		return nil, err
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return r, nil
}

func newRepository(dialector gorm.Dialector, opts []Option) (*GormRepository, error) {
	cfg := &gorm.Config{
		Logger:         gormLogger(zap.NewNop()),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r := &GormRepository{db: db, now: time.Now}
	if err := r.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// WithClock replaces the time source used for entry, exit and audit timestamps.
func (r *GormRepository) WithClock(now func() time.Time) *GormRepository {
	r.now = now
	return r
}

func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Person{}, &Visit{}, &AuditEntry{}, &User{}, &Token{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orderedHistory(db *gorm.DB) *gorm.DB {
	return db.Order("at ASC, id ASC")
}

func (r *GormRepository) CreateVisit(ctx context.Context, visit *Visit, actor string) error {
	visit.Normalize()
	if err := visit.Validate(); err != nil {
		return err
	}

	now := r.now().UTC()
	if visit.EnteredAt.IsZero() {
		visit.EnteredAt = now
	} else {
		visit.EnteredAt = visit.EnteredAt.UTC()
	}

	person, err := r.ResolvePerson(ctx, visit.NationalID, visit.Name, visit.Phone)
	if err != nil {
		return err
	}
	visit.PersonID = &person.ID
	visit.Person = nil
	visit.History = nil

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(visit).Error; err != nil {
			return fmt.Errorf("failed to create visit: %w", err)
		}
		entry := AuditEntry{VisitID: visit.ID, Actor: actor, Action: ActionCreated, At: now}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		visit.History = []AuditEntry{entry}
		return nil
	})
	if err != nil {
		return err
	}
	visit.Person = person
	return nil
}

// UpdateVisit persists the editable fields of visit, relinks its person and
// appends an update entry. Entry, exit and completion are not editable here.
func (r *GormRepository) UpdateVisit(ctx context.Context, visit *Visit, actor string) error {
	visit.Normalize()
	if err := visit.Validate(); err != nil {
		return err
	}

	person, err := r.ResolvePerson(ctx, visit.NationalID, visit.Name, visit.Phone)
	if err != nil {
		return err
	}
	visit.PersonID = &person.ID
	visit.Person = nil

	now := r.now().UTC()
	visit.UpdatedAt = now

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(visit).
			Omit(clause.Associations).
			Select("name", "national_id", "person_id", "phone", "region", "sub_region", "address",
				"category", "referral_target", "other_institution", "notes", "updated_at").
			Updates(visit)
		if res.Error != nil {
			return fmt.Errorf("failed to update visit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		entry := AuditEntry{VisitID: visit.ID, Actor: actor, Action: ActionUpdated, At: now}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return orderedHistory(tx).Where("visit_id = ?", visit.ID).Find(&visit.History).Error
	})
	if err != nil {
		return err
	}
	visit.Person = person
	return nil
}

// CloseVisit records the exit of a visit once. Closing an already completed visit
// leaves it untouched and reports changed=false.
func (r *GormRepository) CloseVisit(ctx context.Context, id uint, actor string) (*Visit, bool, error) {
	now := r.now().UTC()
	changed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Visit{}).
			Where("id = ? AND completed = ?", id, false).
			Updates(map[string]interface{}{"exited_at": now, "completed": true, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to close visit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		entry := AuditEntry{VisitID: id, Actor: actor, Action: ActionExitRegistered, At: now}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	visit, err := r.GetVisitByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return visit, changed, nil
}

func (r *GormRepository) GetVisitByID(ctx context.Context, id uint) (*Visit, error) {
	var visit Visit
	err := r.db.WithContext(ctx).
		Preload("Person").
		Preload("History", orderedHistory).
		First(&visit, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &visit, nil
}

// GetVisitsByIDs loads visits and returns them in the order of ids, skipping missing ones.
func (r *GormRepository) GetVisitsByIDs(ctx context.Context, ids []uint) ([]Visit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []Visit
	err := r.db.WithContext(ctx).
		Preload("Person").
		Preload("History", orderedHistory).
		Where("id IN ?", ids).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]Visit, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	visits := make([]Visit, 0, len(found))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			visits = append(visits, v)
		}
	}
	return visits, nil
}

// ListVisits returns one page of filtered visits, most recent entry first, and the total count.
func (r *GormRepository) ListVisits(ctx context.Context, filter VisitFilter, limit, offset int) ([]Visit, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Visit{}).Scopes(filter.Scope()).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count visits: %w", err)
	}

	var visits []Visit
	err := r.db.WithContext(ctx).
		Scopes(filter.Scope()).
		Preload("Person").
		Preload("History", orderedHistory).
		Order("entered_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&visits).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, total, nil
}

// QueryVisits returns every visit matching filter, oldest entry first, without associations.
func (r *GormRepository) QueryVisits(ctx context.Context, filter VisitFilter) ([]Visit, error) {
	var visits []Visit
	err := r.db.WithContext(ctx).
		Scopes(filter.Scope()).
		Order("entered_at ASC, id ASC").
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	return visits, nil
}

func (r *GormRepository) CountVisitsByPerson(ctx context.Context, personIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(personIDs))
	if len(personIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		PersonID uint
		N        int64
	}
	err := r.db.WithContext(ctx).
		Model(&Visit{}).
		Select("person_id, COUNT(*) AS n").
		Where("person_id IN ?", personIDs).
		Group("person_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count visits by person: %w", err)
	}
	for _, row := range rows {
		counts[row.PersonID] = row.N
	}
	return counts, nil
}

// Regions lists the distinct non-empty regions, sorted.
func (r *GormRepository) Regions(ctx context.Context) ([]string, error) {
	var regions []string
	err := r.db.WithContext(ctx).
		Model(&Visit{}).
		Distinct().
		Where("region IS NOT NULL AND region <> ''").
		Order("region").
		Pluck("region", &regions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

// ResolvePerson returns the person for nationalID, creating it on first sight.
// When two callers race on a new ID the loser re-reads the winner's row.
func (r *GormRepository) ResolvePerson(ctx context.Context, nationalID, name, phone string) (*Person, error) {
	db := r.db.WithContext(ctx)
	var person Person
	err := db.Where("national_id = ?", nationalID).First(&person).Error
	if err == nil {
		return &person, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}
	p, _, err := insertOrFetchPerson(db, &Person{NationalID: nationalID, Name: name, Phone: phone})
	return p, err
}

// insertOrFetchPerson inserts p unless its national ID already exists, in which
// case the stored row is returned and created is false.
func insertOrFetchPerson(db *gorm.DB, p *Person) (*Person, bool, error) {
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "national_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("failed to insert person: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 && p.ID != 0 {
		return p, true, nil
	}

	var winner Person
	if err := db.Where("national_id = ?", p.NationalID).First(&winner).Error; err != nil {
		return nil, false, fmt.Errorf("failed to re-read person %s after conflict: %w", p.NationalID, err)
	}
	return &winner, false, nil
}

func (r *GormRepository) GetPersonByNationalID(ctx context.Context, nationalID string) (*Person, error) {
	var person Person
	if err := r.db.WithContext(ctx).Where("national_id = ?", nationalID).First(&person).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &person, nil
}

func (r *GormRepository) ListVisitsByPerson(ctx context.Context, personID uint) ([]Visit, error) {
	var visits []Visit
	err := r.db.WithContext(ctx).
		Preload("History", orderedHistory).
		Where("person_id = ?", personID).
		Order("entered_at DESC, id DESC").
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visits of person %d: %w", personID, err)
	}
	return visits, nil
}

// BackfillPersons creates the missing person for every national ID found in visits
// and links every visit to its person. Name and phone come from the latest visit.
func (r *GormRepository) BackfillPersons(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult
	db := r.db.WithContext(ctx)

	var nationalIDs []string
	err := db.Model(&Visit{}).
		Distinct().
		Where("national_id <> ''").
		Order("national_id").
		Pluck("national_id", &nationalIDs).Error
	if err != nil {
		return result, fmt.Errorf("failed to list national ids: %w", err)
	}

	for _, nationalID := range nationalIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var person Person
		err := db.Where("national_id = ?", nationalID).First(&person).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			var latest Visit
			if err := db.Where("national_id = ?", nationalID).Order("entered_at DESC, id DESC").First(&latest).Error; err != nil {
				return result, fmt.Errorf("failed to load latest visit of %s: %w", nationalID, err)
			}
			p, created, err := insertOrFetchPerson(db, &Person{NationalID: nationalID, Name: latest.Name, Phone: latest.Phone})
			if err != nil {
				return result, err
			}
			if created {
				result.Created++
			}
			person = *p
		default:
			return result, fmt.Errorf("failed to look up person %s: %w", nationalID, err)
		}

		res := db.Model(&Visit{}).
			Where("national_id = ? AND (person_id IS NULL OR person_id <> ?)", nationalID, person.ID).
			Update("person_id", person.ID)
		if res.Error != nil {
			return result, fmt.Errorf("failed to link visits of %s: %w", nationalID, res.Error)
		}
		result.Linked += res.RowsAffected
	}
	return result, nil
}
