package feed

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/group"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// RequestFollow asks followeeID to admit this user to their group.
func (s *Session) RequestFollow(ctx context.Context, followeeID string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if followeeID == "" || followeeID == s.userID {
		return common.MalformedError(fmt.Sprintf("cannot follow %q", followeeID))
	}
	if _, ok := s.manifest.Value.FollowerManifests[followeeID]; ok {
		return fmt.Errorf("already following %s", followeeID)
	}

	kp, err := s.group.GenerateKeyPackage(ctx, s.userID, s.publicKey())
	if err != nil {
		return fmt.Errorf("generate key package: %w", err)
	}

	fr := s.followRequests.Value
	fr.Outgoing = append(slices.Clone(fr.Outgoing), manifest.OutgoingFollowRequest{
		FolloweeID:     followeeID,
		PublicPackage:  kp.Public,
		PrivatePackage: kp.Private,
	})

	b := &batch{}
	if err := s.stageFollowRequests(b, fr); err != nil {
		return err
	}
	out, err := s.newOutgoing([]string{followeeID}, FollowRequestMessage{KeyPackage: kp.Public})
	if err != nil {
		return err
	}

	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store follow request: %w", err)
	}
	s.log.Info(ctx, "follow requested", "followee", followeeID)
	return s.send(ctx, out)
}

// ReceiveFollowRequest records a request from followerID. Repeated requests
// are recorded again.
func (s *Session) ReceiveFollowRequest(ctx context.Context, followerID string, keyPackage []byte) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	fr := s.followRequests.Value
	fr.Incoming = append(slices.Clone(fr.Incoming), manifest.IncomingFollowRequest{
		FollowerID:    followerID,
		PublicPackage: keyPackage,
	})

	b := &batch{}
	if err := s.stageFollowRequests(b, fr); err != nil {
		return err
	}
	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store incoming request: %w", err)
	}
	s.log.Info(ctx, "follow request received", "follower", followerID)
	return nil
}

// AllowFollow admits followerID to the own group. Membership changes rotate
// the post secret, so the post listing is re-sealed in the same batch.
func (s *Session) AllowFollow(ctx context.Context, followerID string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	fr := s.followRequests.Value
	i := slices.IndexFunc(fr.Incoming, func(r manifest.IncomingFollowRequest) bool { return r.FollowerID == followerID })
	if i < 0 {
		return fmt.Errorf("%w: follow request from %s", common.ErrorNotFound, followerID)
	}
	req := fr.Incoming[i]

	state := s.ownGroup.Value.GroupState
	members, err := s.group.Members(state)
	if err != nil {
		return err
	}
	existing := lo.Without(members, s.userID, followerID)

	fm, err := codec.Marshal(manifest.FollowerManifest{PostManifest: s.posts.Storage, CurrentPage: s.page.Storage})
	if err != nil {
		return err
	}
	res, err := s.group.AddMember(ctx, state, req.PublicPackage, []group.Extension{{Type: FollowerManifestExtension, Data: fm}})
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	secret, err := s.postSecret(ctx, res.State)
	if err != nil {
		return err
	}

	b := &batch{}

	gs := s.ownGroup.Value.Clone()
	gs.GroupState = res.State
	gsP, gsE, err := entity.Update(s.ownGroup, gs, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return err
	}
	stage(b, gsP, gsE, &s.ownGroup)

	fr.Incoming = slices.Delete(slices.Clone(fr.Incoming), i, i+1)
	if err := s.stageFollowRequests(b, fr); err != nil {
		return err
	}

	pm, err := s.stageRekeyPages(ctx, b, secret)
	if err != nil {
		return err
	}
	if err := s.stagePostManifest(b, pm, secret); err != nil {
		return err
	}

	welcome, err := s.newOutgoing([]string{followerID}, WelcomeMessage{Welcome: res.Welcome})
	if err != nil {
		return err
	}
	commit, err := s.newOutgoing(existing, GroupMessage{GroupID: group.DeriveGroupID(s.userID), Message: res.Commit})
	if err != nil {
		return err
	}

	if err := s.access.Grant(ctx, followerID); err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store admission: %w", err)
	}
	s.log.Info(ctx, "follower admitted", "follower", followerID, "members", len(members)+1)

	return s.send(ctx, welcome, commit)
}

// stageRekeyPages re-seals the current and every sealed page under secret
// and returns the post manifest pointing at them.
func (s *Session) stageRekeyPages(ctx context.Context, b *batch, secret []byte) (manifest.PostManifest, error) {
	pm := s.posts.Value.Clone()

	p, e, err := entity.Update(s.page, s.page.Value, entity.Encode[manifest.PostManifestPage], rekey(s.page.Storage, secret))
	if err != nil {
		return manifest.PostManifest{}, err
	}
	stage(b, p, e, &s.page)
	pm.CurrentPage = e.Storage

	var stale []int
	for i, ref := range pm.Pages {
		if rekey(ref.Page, secret) != nil {
			stale = append(stale, i)
		}
	}
	if len(stale) == 0 {
		return pm, nil
	}

	ids := lo.Map(stale, func(i int, _ int) entity.StorageIdentifier { return pm.Pages[i].Page })
	opened, err := s.remote.FetchRawMany(ctx, ids...)
	if err != nil {
		return manifest.PostManifest{}, fmt.Errorf("sealed pages: %w", err)
	}
	for j, i := range stale {
		old := entity.Entity[[]byte]{Value: opened[j].Content, Version: opened[j].Version, Storage: ids[j]}
		p, e, err := entity.Update(old, old.Value, entity.Raw, secret)
		if err != nil {
			return manifest.PostManifest{}, err
		}
		b.add(p, nil)
		pm.Pages[i].Page = e.Storage
	}
	return pm, nil
}

// ProcessAllowFollow joins followeeID's group using the welcome they sent
// and records the FollowerManifest it carries.
func (s *Session) ProcessAllowFollow(ctx context.Context, followeeID string, welcome []byte) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	fr := s.followRequests.Value
	var (
		state []byte
		exts  []group.Extension
		err   error
	)
	i := slices.IndexFunc(fr.Outgoing, func(r manifest.OutgoingFollowRequest) bool {
		if r.FolloweeID != followeeID {
			return false
		}
		state, exts, err = s.group.Join(ctx, welcome, group.KeyPackage{Public: r.PublicPackage, Private: r.PrivatePackage})
		return err == nil
	})
	if i < 0 {
		if err != nil {
			return fmt.Errorf("join group of %s: %w", followeeID, err)
		}
		return fmt.Errorf("%w: follow request to %s", common.ErrorNotFound, followeeID)
	}

	ext, ok := lo.Find(exts, func(e group.Extension) bool { return e.Type == FollowerManifestExtension })
	if !ok {
		return common.MalformedError("welcome carries no follower manifest")
	}
	var fm manifest.FollowerManifest
	if err := codec.Unmarshal(ext.Data, &fm); err != nil {
		return common.MalformedError(fmt.Sprintf("follower manifest: %v", err))
	}

	b := &batch{}

	fmP, fmE, err := entity.New(fm, s.masterKey, entity.Encode[manifest.FollowerManifest])
	if err != nil {
		return err
	}
	b.add(fmP, nil)

	gsP, gsE, err := entity.New(manifest.FollowerGroupState{
		GroupState:         state,
		CachedInteractions: map[string][]manifest.Interaction{},
	}, s.masterKey, entity.Encode[manifest.FollowerGroupState])
	if err != nil {
		return err
	}
	b.add(gsP, nil)

	fr.Outgoing = slices.Delete(slices.Clone(fr.Outgoing), i, i+1)
	if err := s.stageFollowRequests(b, fr); err != nil {
		return err
	}

	root := s.manifest.Value.Clone()
	root.FollowerManifests[followeeID] = fmE.Storage
	root.GroupStates[groupKey(followeeID)] = gsE.Storage
	if err := s.stageManifest(b, root); err != nil {
		return err
	}

	if err := s.flush(ctx, b); err != nil {
		return fmt.Errorf("store follow: %w", err)
	}
	s.log.Info(ctx, "now following", "followee", followeeID)
	return nil
}

func (s *Session) stageFollowRequests(b *batch, fr manifest.FollowRequests) error {
	p, e, err := entity.Update(s.followRequests, fr, entity.Encode[manifest.FollowRequests])
	if err != nil {
		return err
	}
	stage(b, p, e, &s.followRequests)
	return nil
}

// Following lists the users this user follows.
func (s *Session) Following() []string {
	out := lo.Keys(s.manifest.Value.FollowerManifests)
	sort.Strings(out)
	return out
}

// Followers lists the members of the own group other than this user.
func (s *Session) Followers() ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	members, err := s.group.Members(s.ownGroup.Value.GroupState)
	if err != nil {
		return nil, err
	}
	return lo.Without(members, s.userID), nil
}

// followeeGroup loads the group state kept for followeeID.
func (s *Session) followeeGroup(ctx context.Context, followeeID string) (entity.Entity[manifest.FollowerGroupState], error) {
	id, ok := s.manifest.Value.GroupStates[groupKey(followeeID)]
	if !ok {
		return entity.Entity[manifest.FollowerGroupState]{}, fmt.Errorf("%w: %s", ErrNotFollowing, followeeID)
	}
	gs, err := Fetch[manifest.FollowerGroupState](ctx, s.remote, id)
	if err != nil {
		return entity.Entity[manifest.FollowerGroupState]{}, fmt.Errorf("group state for %s: %w", followeeID, err)
	}
	if gs.Value.CachedInteractions == nil {
		gs.Value.CachedInteractions = map[string][]manifest.Interaction{}
	}
	return gs, nil
}
