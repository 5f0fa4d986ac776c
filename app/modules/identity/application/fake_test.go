package identityservice

import (
	"context"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/davidhouweling/guilty-spark-sub001/app/clients/halo"
	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/observability"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// ------------------------
// Fake association repo
// ------------------------

// FakeAssociationRepository provides a programmable stub for the
// identitydb.Repository interface.
type FakeAssociationRepository struct {
	trace []string

	GetByDiscordUserIDsFunc func(ctx context.Context, ids []sharedtypes.UserID) (map[sharedtypes.UserID]identitydb.Association, error)
	UpsertBulkFunc          func(ctx context.Context, associations []identitydb.Association) error

	// Upserted collects every row passed to UpsertBulk.
	Upserted []identitydb.Association
}

func NewFakeAssociationRepository() *FakeAssociationRepository {
	return &FakeAssociationRepository{trace: []string{}}
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeAssociationRepository) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeAssociationRepository) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeAssociationRepository) GetByDiscordUserIDs(ctx context.Context, ids []sharedtypes.UserID) (map[sharedtypes.UserID]identitydb.Association, error) {
	f.record("GetByDiscordUserIDs")
	if f.GetByDiscordUserIDsFunc != nil {
		return f.GetByDiscordUserIDsFunc(ctx, ids)
	}
	return map[sharedtypes.UserID]identitydb.Association{}, nil
}

func (f *FakeAssociationRepository) UpsertBulk(ctx context.Context, associations []identitydb.Association) error {
	f.record("UpsertBulk")
	f.Upserted = append(f.Upserted, associations...)
	if f.UpsertBulkFunc != nil {
		return f.UpsertBulkFunc(ctx, associations)
	}
	return nil
}

// ------------------------
// Fake account finder / probe
// ------------------------

type FakeAccountFinder struct {
	trace []string

	FindByGamertagFunc func(ctx context.Context, gamertag string) (*halo.Account, error)
}

func (f *FakeAccountFinder) Trace() []string { return f.trace }

func (f *FakeAccountFinder) FindByGamertag(ctx context.Context, gamertag string) (*halo.Account, error) {
	f.trace = append(f.trace, "FindByGamertag:"+gamertag)
	if f.FindByGamertagFunc != nil {
		return f.FindByGamertagFunc(ctx, gamertag)
	}
	return nil, nil
}

type FakeHistoryProbe struct {
	HasRetrievableHistoryFunc func(ctx context.Context, id sharedtypes.XboxUserID) (bool, error)
}

func (f *FakeHistoryProbe) HasRetrievableHistory(ctx context.Context, id sharedtypes.XboxUserID) (bool, error) {
	if f.HasRetrievableHistoryFunc != nil {
		return f.HasRetrievableHistoryFunc(ctx, id)
	}
	return true, nil
}

// newTestService wires a service with fakes and noop observability.
func newTestService(repo *FakeAssociationRepository, finder *FakeAccountFinder, probe *FakeHistoryProbe) *IdentityService {
	if repo == nil {
		repo = NewFakeAssociationRepository()
	}
	if finder == nil {
		finder = &FakeAccountFinder{}
	}
	if probe == nil {
		probe = &FakeHistoryProbe{}
	}
	return NewIdentityService(
		repo,
		finder,
		probe,
		observability.NoOpLogger,
		observability.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
}
