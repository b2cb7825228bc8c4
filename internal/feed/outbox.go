package feed

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/group"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// outgoing is a message to send once its batch is stored.
type outgoing struct {
	recipients []string
	payload    []byte
}

func (s *Session) send(ctx context.Context, msgs ...*outgoing) error {
	for _, m := range msgs {
		if m == nil || len(m.recipients) == 0 {
			continue
		}
		if _, err := s.messenger.Send(ctx, m.recipients, m.payload); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (s *Session) newOutgoing(recipients []string, msg any) (*outgoing, error) {
	payload, err := EncodePublic(msg)
	if err != nil {
		return nil, err
	}
	return &outgoing{recipients: recipients, payload: payload}, nil
}

// stageGroupBroadcast encrypts msg for the group owned by ownerID and stages
// the advanced group state. It returns nil when the group has no other
// members.
func (s *Session) stageGroupBroadcast(
	ctx context.Context,
	b *batch,
	ownerID string,
	gs entity.Entity[manifest.FollowerGroupState],
	msg any,
	commit func(entity.Entity[manifest.FollowerGroupState]),
) (*outgoing, error) {
	members, err := s.group.Members(gs.Value.GroupState)
	if err != nil {
		return nil, err
	}
	recipients := lo.Without(members, s.userID)
	if len(recipients) == 0 {
		return nil, nil
	}

	plain, err := EncodeApplication(msg)
	if err != nil {
		return nil, err
	}
	next, ct, err := s.group.Encrypt(ctx, gs.Value.GroupState, plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt group message: %w", err)
	}

	value := gs.Value.Clone()
	value.GroupState = next
	p, e, err := entity.Update(gs, value, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return nil, err
	}
	b.add(p, func() { commit(e) })

	return s.newOutgoing(recipients, GroupMessage{GroupID: group.DeriveGroupID(ownerID), Message: ct})
}

func (s *Session) stageOwnBroadcast(ctx context.Context, b *batch, msg any) (*outgoing, error) {
	return s.stageGroupBroadcast(ctx, b, s.userID, s.ownGroup, msg, func(e entity.Entity[manifest.FollowerGroupState]) {
		s.ownGroup = e
	})
}
