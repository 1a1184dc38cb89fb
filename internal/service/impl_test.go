package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	rebuildmocks "github.com/newsnow-ops/source-registry-server/internal/rebuild/mocks"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	registrymocks "github.com/newsnow-ops/source-registry-server/internal/registry/mocks"
	"github.com/newsnow-ops/source-registry-server/internal/service"
	servicemocks "github.com/newsnow-ops/source-registry-server/internal/service/mocks"
	"github.com/newsnow-ops/source-registry-server/internal/status"
	"github.com/newsnow-ops/source-registry-server/internal/validators"
)

func newService(t *testing.T, opts ...service.Option) (service.SourceService, *registrymocks.MockSourceRegistry, *rebuildmocks.MockTrigger) {
	t.Helper()

	ctrl := gomock.NewController(t)
	reg := registrymocks.NewMockSourceRegistry(ctrl)
	trigger := rebuildmocks.NewMockTrigger(ctrl)

	svc, err := service.New(reg, append([]service.Option{service.WithTrigger(trigger)}, opts...)...)
	require.NoError(t, err)
	return svc, reg, trigger
}

func validRequest() *service.RegisterSourceRequest {
	return &service.RegisterSourceRequest{
		ID:     "techblog",
		Config: registry.NewTestSourceConfig("Tech Blog"),
		Code:   registry.NewTestModule("techblog"),
	}
}

func TestNew_RequiresRegistry(t *testing.T) {
	t.Parallel()

	svc, err := service.New(nil)
	require.Error(t, err)
	assert.Nil(t, svc)
}

func TestRegisterSource_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(req *service.RegisterSourceRequest)
		wantMsg string
	}{
		{
			name:    "missing id",
			mutate:  func(req *service.RegisterSourceRequest) { req.ID = "" },
			wantMsg: "missing required fields: id",
		},
		{
			name:    "absent config",
			mutate:  func(req *service.RegisterSourceRequest) { req.Config = nil },
			wantMsg: "missing required fields: config",
		},
		{
			name:    "null config",
			mutate:  func(req *service.RegisterSourceRequest) { req.Config = json.RawMessage("null") },
			wantMsg: "missing required fields: config",
		},
		{
			name:    "empty string config",
			mutate:  func(req *service.RegisterSourceRequest) { req.Config = json.RawMessage(`""`) },
			wantMsg: "missing required fields: config",
		},
		{
			name: "every field missing",
			mutate: func(req *service.RegisterSourceRequest) {
				*req = service.RegisterSourceRequest{}
			},
			wantMsg: "missing required fields: id, config, code",
		},
		{
			name:    "missing code",
			mutate:  func(req *service.RegisterSourceRequest) { req.Code = "" },
			wantMsg: "missing required fields: code",
		},
		{
			name:    "path traversal id",
			mutate:  func(req *service.RegisterSourceRequest) { req.ID = "../../etc/passwd" },
			wantMsg: "single file name",
		},
		{
			name:    "id outside allow-list",
			mutate:  func(req *service.RegisterSourceRequest) { req.ID = "tech blog" },
			wantMsg: "is invalid",
		},
		{
			name:    "config is an array",
			mutate:  func(req *service.RegisterSourceRequest) { req.Config = json.RawMessage(`[1,2]`) },
			wantMsg: "config must be a JSON object",
		},
		{
			name:    "config is malformed",
			mutate:  func(req *service.RegisterSourceRequest) { req.Config = json.RawMessage(`{"name":`) },
			wantMsg: "config is not valid JSON",
		},
		{
			name:    "code too large",
			mutate:  func(req *service.RegisterSourceRequest) { req.Code = strings.Repeat("x", 65) },
			wantMsg: "code exceeds maximum size of 64 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// No registry or trigger call is expected
			svc, _, _ := newService(t, service.WithMaxCodeBytes(64))

			req := validRequest()
			tt.mutate(req)

			result, err := svc.RegisterSource(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, service.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRegisterSource_NilRequest(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	_, err := svc.RegisterSource(context.Background(), nil)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestRegisterSource_EmptyObjectConfigIsPresent(t *testing.T) {
	t.Parallel()

	svc, reg, _ := newService(t)
	req := validRequest()
	req.Config = json.RawMessage(`{}`)

	reg.EXPECT().Register(gomock.Any(), req.ID, req.Config, req.Code).Return(nil)

	_, err := svc.RegisterSource(context.Background(), req)
	require.NoError(t, err)
}

func TestRegisterSource_RegistryFailuresSkipTrigger(t *testing.T) {
	t.Parallel()

	failures := []error{
		fmt.Errorf("%w: source %q already exists", registry.ErrDuplicateIdentifier, "techblog"),
		fmt.Errorf("%w: unexpected end of JSON input", registry.ErrConfigCorrupt),
		fmt.Errorf("%w: disk full", registry.ErrIOFailure),
		fmt.Errorf("%w: module not written", registry.ErrPartialRegistration),
		registry.ErrRegistryBusy,
	}

	for _, regErr := range failures {
		t.Run(regErr.Error(), func(t *testing.T) {
			t.Parallel()

			svc, reg, trigger := newService(t)
			req := validRequest()
			req.Rebuild = true

			reg.EXPECT().Register(gomock.Any(), req.ID, req.Config, req.Code).Return(regErr)
			trigger.EXPECT().Trigger(gomock.Any()).Times(0)

			result, err := svc.RegisterSource(context.Background(), req)
			require.ErrorIs(t, err, regErr)
			assert.Nil(t, result)
		})
	}
}

func TestRegisterSource_Success(t *testing.T) {
	t.Parallel()

	ack := &rebuild.Ack{
		RequestID:   "2b1e6d1c-7f0a-4c5e-9a4b-3e8d2f1c0a9b",
		RequestedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Command:     "sh -c 'pnpm run build && pm2 reload newsnow'",
	}

	tests := []struct {
		name         string
		rebuild      bool
		setupTrigger func(trigger *rebuildmocks.MockTrigger)
		check        func(t *testing.T, result *service.RegisterSourceResult)
	}{
		{
			name:    "without rebuild",
			rebuild: false,
			setupTrigger: func(trigger *rebuildmocks.MockTrigger) {
				trigger.EXPECT().Trigger(gomock.Any()).Times(0)
			},
			check: func(t *testing.T, result *service.RegisterSourceResult) {
				t.Helper()
				assert.Contains(t, result.Message, `Source "techblog" was created`)
				assert.Contains(t, result.Message, "Request a rebuild")
				assert.Nil(t, result.Rebuild)
				assert.Empty(t, result.RebuildError)
			},
		},
		{
			name:    "with rebuild",
			rebuild: true,
			setupTrigger: func(trigger *rebuildmocks.MockTrigger) {
				trigger.EXPECT().Trigger(gomock.Any()).Return(ack, nil)
			},
			check: func(t *testing.T, result *service.RegisterSourceResult) {
				t.Helper()
				assert.Equal(t, ack, result.Rebuild)
				assert.Contains(t, result.Message, ack.RequestID)
				assert.Empty(t, result.RebuildError)
			},
		},
		{
			name:    "rebuild failure does not fail registration",
			rebuild: true,
			setupTrigger: func(trigger *rebuildmocks.MockTrigger) {
				trigger.EXPECT().Trigger(gomock.Any()).Return(nil, rebuild.ErrDispatcherStopped)
			},
			check: func(t *testing.T, result *service.RegisterSourceResult) {
				t.Helper()
				assert.Nil(t, result.Rebuild)
				assert.Equal(t, rebuild.ErrDispatcherStopped.Error(), result.RebuildError)
				assert.Contains(t, result.Message, "rebuild was not triggered")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, reg, trigger := newService(t)
			req := validRequest()
			req.Rebuild = tt.rebuild

			reg.EXPECT().Register(gomock.Any(), req.ID, req.Config, req.Code).Return(nil)
			tt.setupTrigger(trigger)

			result, err := svc.RegisterSource(context.Background(), req)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, "techblog", result.ID)
			tt.check(t, result)
		})
	}
}

func TestRegisterSource_CustomValidators(t *testing.T) {
	t.Parallel()

	idValidator, err := validators.NewSourceIDValidator(`^[a-z]+$`, 8)
	require.NoError(t, err)

	svc, _, _ := newService(t, service.WithIDValidator(idValidator))

	req := validRequest()
	req.ID = "tech-blog"
	_, err = svc.RegisterSource(context.Background(), req)
	require.ErrorIs(t, err, service.ErrValidation)

	req.ID = "techblogger"
	_, err = svc.RegisterSource(context.Background(), req)
	require.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, err.Error(), "exceeds maximum length of 8")
}

func TestRequestRebuild(t *testing.T) {
	t.Parallel()

	t.Run("returns the ack", func(t *testing.T) {
		t.Parallel()

		svc, _, trigger := newService(t)
		ack := &rebuild.Ack{RequestID: "r-1", Coalesced: true}
		trigger.EXPECT().Trigger(gomock.Any()).Return(ack, nil)

		got, err := svc.RequestRebuild(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ack, got)
	})

	t.Run("propagates trigger errors", func(t *testing.T) {
		t.Parallel()

		svc, _, trigger := newService(t)
		trigger.EXPECT().Trigger(gomock.Any()).Return(nil, rebuild.ErrRebuildDisabled)

		_, err := svc.RequestRebuild(context.Background())
		require.ErrorIs(t, err, rebuild.ErrRebuildDisabled)
	})

	t.Run("disabled without trigger", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		svc, err := service.New(registrymocks.NewMockSourceRegistry(ctrl))
		require.NoError(t, err)

		_, err = svc.RequestRebuild(context.Background())
		require.ErrorIs(t, err, rebuild.ErrRebuildDisabled)

		_, err = svc.GetRebuildStatus(context.Background())
		require.ErrorIs(t, err, rebuild.ErrRebuildDisabled)
	})
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	svc, reg, _ := newService(t)

	reg.EXPECT().List(gomock.Any()).Return([]*registry.Entry{}, nil)
	require.NoError(t, svc.CheckReadiness(context.Background()))

	reg.EXPECT().List(gomock.Any()).Return(nil, registry.ErrConfigCorrupt)
	err := svc.CheckReadiness(context.Background())
	require.ErrorIs(t, err, service.ErrNotReady)
	require.ErrorIs(t, err, registry.ErrConfigCorrupt)
}

func TestReadOperations(t *testing.T) {
	t.Parallel()

	svc, reg, _ := newService(t)
	ctx := context.Background()
	entry := &registry.Entry{ID: "techblog", Config: registry.NewTestSourceConfig("Tech Blog"), ModulePresent: true}

	reg.EXPECT().List(gomock.Any()).Return([]*registry.Entry{entry}, nil)
	entries, err := svc.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*registry.Entry{entry}, entries)

	reg.EXPECT().Get(gomock.Any(), "techblog").Return(entry, nil)
	got, err := svc.GetSource(ctx, "techblog")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	reg.EXPECT().Get(gomock.Any(), "missing").Return(nil, registry.ErrSourceNotFound)
	_, err = svc.GetSource(ctx, "missing")
	require.ErrorIs(t, err, registry.ErrSourceNotFound)

	_, err = svc.GetSource(ctx, "../secret")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestRepairSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     *service.RepairSourceRequest
		setup   func(reg *registrymocks.MockSourceRegistry)
		wantErr error
	}{
		{
			name: "repairs orphan",
			req:  &service.RepairSourceRequest{ID: "techblog", Code: "export default {}"},
			setup: func(reg *registrymocks.MockSourceRegistry) {
				reg.EXPECT().Repair(gomock.Any(), "techblog", "export default {}").Return(nil)
			},
		},
		{
			name:    "invalid id",
			req:     &service.RepairSourceRequest{ID: "a/b", Code: "x"},
			setup:   func(*registrymocks.MockSourceRegistry) {},
			wantErr: service.ErrValidation,
		},
		{
			name:    "missing code",
			req:     &service.RepairSourceRequest{ID: "techblog"},
			setup:   func(*registrymocks.MockSourceRegistry) {},
			wantErr: service.ErrValidation,
		},
		{
			name:    "nil request",
			req:     nil,
			setup:   func(*registrymocks.MockSourceRegistry) {},
			wantErr: service.ErrValidation,
		},
		{
			name: "not found",
			req:  &service.RepairSourceRequest{ID: "techblog", Code: "x"},
			setup: func(reg *registrymocks.MockSourceRegistry) {
				reg.EXPECT().Repair(gomock.Any(), "techblog", "x").Return(registry.ErrSourceNotFound)
			},
			wantErr: registry.ErrSourceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, reg, _ := newService(t)
			tt.setup(reg)

			err := svc.RepairSource(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDiscardSource(t *testing.T) {
	t.Parallel()

	svc, reg, _ := newService(t)
	ctx := context.Background()

	reg.EXPECT().Discard(gomock.Any(), "techblog").Return(nil)
	require.NoError(t, svc.DiscardSource(ctx, "techblog"))

	reg.EXPECT().Discard(gomock.Any(), "healthy").Return(registry.ErrNotOrphaned)
	require.ErrorIs(t, svc.DiscardSource(ctx, "healthy"), registry.ErrNotOrphaned)

	require.ErrorIs(t, svc.DiscardSource(ctx, ".hidden"), service.ErrValidation)
}

func TestCheckConsistency(t *testing.T) {
	t.Parallel()

	svc, reg, _ := newService(t)
	report := &registry.Report{Sources: 3, Orphans: []string{"a"}, StrayModules: []string{"b"}}

	reg.EXPECT().Check(gomock.Any()).Return(report, nil)
	got, err := svc.CheckConsistency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report, got)

	checkErr := errors.New("boom")
	reg.EXPECT().Check(gomock.Any()).Return(nil, checkErr)
	_, err = svc.CheckConsistency(context.Background())
	require.ErrorIs(t, err, checkErr)
}

func TestGetRebuildStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	reader := servicemocks.NewMockStatusReader(ctrl)
	svc, _, _ := newService(t, service.WithStatusReader(reader))

	st := &status.RebuildStatus{Phase: status.RebuildPhaseComplete, RunCount: 2}
	reader.EXPECT().Status(gomock.Any()).Return(st, nil)

	got, err := svc.GetRebuildStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st, got)
}
