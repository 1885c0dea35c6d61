package service

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	adminID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			assert.NoError(t, ctx.Err(), "request cancellation must not abort the write")
			done <- log
			return nil
		},
	)

	svc.Log(ctx, &domain.AuditLog{
		ActorID:      &adminID,
		ActorRole:    domain.RoleAdmin,
		Action:       domain.AuditActionWalletStatus,
		ResourceType: "wallet",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
	})
	cancel()

	select {
	case got := <-done:
		assert.Equal(t, domain.AuditActionWalletStatus, got.Action)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.False(t, got.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			Action:       domain.AuditActionGrantAccess,
			ResourceType: "access_grant",
			IPAddress:    "127.0.0.1",
		})
	})
	time.Sleep(50 * time.Millisecond)
}
