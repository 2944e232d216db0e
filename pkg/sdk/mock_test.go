package offerd

import (
	"context"

	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	agentuc "github.com/coursedesk/offerd/internal/usecase/agent"
	profileuc "github.com/coursedesk/offerd/internal/usecase/profile"
)

// mockAgent implements agentUseCase; unset funcs panic through the nil embedded interface.
type mockAgent struct {
	agentUseCase
	profileFn func(ctx context.Context, userID string) (agentuc.ProfileBrief, error)
	updateFn  func(ctx context.Context, u agentuc.ConversationUpdate) (profileuc.View, domprofile.Change, error)
	orderFn   func(ctx context.Context, id string) (agentuc.OrderBrief, error)
}

func (m *mockAgent) ProfileForAgent(ctx context.Context, userID string) (agentuc.ProfileBrief, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockAgent) UpdateFromConversation(
	ctx context.Context, u agentuc.ConversationUpdate,
) (profileuc.View, domprofile.Change, error) {
	return m.updateFn(ctx, u)
}

func (m *mockAgent) OrderStatus(ctx context.Context, id string) (agentuc.OrderBrief, error) {
	return m.orderFn(ctx, id)
}
