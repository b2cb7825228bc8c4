package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// ProcessIncoming handles every pending message and acknowledges the ones
// that were applied or rejected. Messages that failed for other reasons stay
// queued for the next call. It returns the number of applied messages.
func (s *Session) ProcessIncoming(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}

	msgs, err := s.messenger.Receive(ctx)
	if err != nil {
		return 0, fmt.Errorf("receive messages: %w", err)
	}

	var (
		ack     []string
		applied int
	)
	for _, m := range msgs {
		err := s.dispatch(ctx, m)
		switch {
		case err == nil:
			applied++
			ack = append(ack, m.ID)
		case rejected(err):
			s.log.Warn(ctx, "message rejected", "id", m.ID, "sender", m.SenderID, "error", err)
			ack = append(ack, m.ID)
		default:
			s.log.Error(ctx, "message processing failed", "id", m.ID, "sender", m.SenderID, "error", err)
		}
	}

	if len(ack) > 0 {
		if err := s.messenger.Ack(ctx, ack); err != nil {
			return applied, fmt.Errorf("ack messages: %w", err)
		}
	}
	return applied, nil
}

// rejected reports errors that retrying the same message cannot fix.
func rejected(err error) bool {
	return errors.Is(err, ErrUnknownMessage) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrNotFollowing) ||
		errors.Is(err, common.ErrMalformed) ||
		errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, cryptox.ErrDecrypt)
}

func (s *Session) dispatch(ctx context.Context, m api.Message) error {
	msg, err := DecodePublic(m.Payload)
	if err != nil {
		return err
	}

	switch v := msg.(type) {
	case FollowRequestMessage:
		return s.ReceiveFollowRequest(ctx, m.SenderID, v.KeyPackage)
	case WelcomeMessage:
		return s.ProcessAllowFollow(ctx, m.SenderID, v.Welcome)
	case GroupMessage:
		return s.handleGroupMessage(ctx, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

func (s *Session) handleGroupMessage(ctx context.Context, gm GroupMessage) error {
	key := common.EncodeID(gm.GroupID)

	var (
		gs     entity.Entity[manifest.FollowerGroupState]
		commit = func(entity.Entity[manifest.FollowerGroupState]) {}
	)
	if key == groupKey(s.userID) {
		gs = s.ownGroup
		commit = func(e entity.Entity[manifest.FollowerGroupState]) { s.ownGroup = e }
	} else {
		id, ok := s.manifest.Value.GroupStates[key]
		if !ok {
			return fmt.Errorf("%w: group %s", ErrNotFollowing, key)
		}
		var err error
		if gs, err = Fetch[manifest.FollowerGroupState](ctx, s.remote, id); err != nil {
			return err
		}
	}

	res, err := s.group.Process(ctx, gs.Value.GroupState, gm.Message)
	if err != nil {
		return fmt.Errorf("process group message: %w", err)
	}

	value := gs.Value.Clone()
	value.GroupState = res.State

	b := &batch{}

	if res.Application == nil {
		s.log.Info(ctx, "group commit applied", "group", key, "sender", res.Sender)
	} else {
		app, err := DecodeApplication(res.Application)
		if err != nil {
			return err
		}
		switch a := app.(type) {
		case PostMessage:
			s.log.Info(ctx, "new post", "poster", res.Sender, "post", manifest.PostID(a.Post))
		case InteractionMessage:
			if err := s.receiveInteraction(ctx, b, res.Sender, a, &value); err != nil {
				return err
			}
		}
	}

	p, e, err := entity.Update(gs, value, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return err
	}
	b.add(p, func() { commit(e) })
	return s.flush(ctx, b)
}
