package resolvers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/store"
)

const (
	OpFollowUser       = "followUser"
	OpUnfollowUser     = "unfollowUser"
	OpGetUserFollowers = "getUserFollowers"
	OpGetUserFollowing = "getUserFollowing"
)

const stashNextToken = "nextToken"

func (r *Resolvers) registerFollows() {
	r.register(OpFollowUser, step("followUser", r.followUser))
	r.register(OpUnfollowUser, step("unfollowUser", r.unfollowUser))

	r.register(OpGetUserFollowers, r.edgeListSteps(edgeList{
		ids:     "getFollowerIds",
		details: "batchGetFollowerDetails",
		after:   "afterBatchGetFollowerDetails",
		pattern: store.PatternFollowers,
		field:   keys.FieldFollowingID,
		attr:    keys.AttrGSI3SK,
		prefix:  keys.PrefixFollower,
	})...)
	r.register(OpGetUserFollowing, r.edgeListSteps(edgeList{
		ids:     "getFollowingIds",
		details: "batchGetFollowingDetails",
		after:   "afterBatchGetFollowingDetails",
		pattern: store.PatternFollowing,
		field:   keys.FieldFollowerID,
		attr:    keys.AttrSK,
		prefix:  keys.PrefixFollowing,
	})...)
}

type followArgs struct {
	FollowerID  string `json:"followerId" validate:"required"`
	FollowingID string `json:"followingId" validate:"required"`
}

func (a followArgs) edgeKeys(c *keys.Codec) (keys.Keys, error) {
	if a.FollowerID == a.FollowingID {
		return keys.Keys{}, invalid("a user cannot follow themselves")
	}
	return c.Build(keys.KindFollow, keys.Fields{
		keys.FieldFollowerID:  a.FollowerID,
		keys.FieldFollowingID: a.FollowingID,
	})
}

// followUser writes the edge unconditionally; following twice is a no-op.
func (r *Resolvers) followUser(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args followArgs
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}
	k, err := args.edgeKeys(r.gw.Codec())
	if err != nil {
		return pipeline.Outcome{}, err
	}
	f := Follow{FollowerID: args.FollowerID, FollowingID: args.FollowingID, CreatedOn: r.timestamp()}
	item, err := toItem(f)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if err := r.gw.Put(ctx, k, item, store.Unconditional); err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(f), nil
}

// unfollowUser removes the edge and resolves to it, or nil when the users
// were not connected.
func (r *Resolvers) unfollowUser(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args followArgs
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}
	k, err := args.edgeKeys(r.gw.Codec())
	if err != nil {
		return pipeline.Outcome{}, err
	}
	old, err := r.gw.Delete(ctx, k.Key)
	if errors.Is(err, store.ErrNotFound) {
		return pipeline.Continue((*Follow)(nil)), nil
	}
	if err != nil {
		return pipeline.Outcome{}, err
	}
	f, err := fromItem[Follow](old)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(&f), nil
}

// edgeList describes a two-stage listing: a page of follow edges, then the
// users at the far end of each edge.
type edgeList struct {
	ids, details, after string

	pattern string
	field   string
	attr    string
	prefix  string
}

func (r *Resolvers) edgeListSteps(l edgeList) []pipeline.Step {
	return []pipeline.Step{
		step(l.ids, func(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
			var args struct {
				UserID string `json:"userId" validate:"required"`
				PageArgs
			}
			if err := bind(pc, &args); err != nil {
				return pipeline.Outcome{}, err
			}
			page, err := r.gw.Query(ctx, l.pattern, keys.Fields{l.field: args.UserID}, args.Limit, args.NextToken)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			if len(page.Items) == 0 {
				return pipeline.Stop(Page[User]{Items: []User{}}), nil
			}
			pc.Stash[stashNextToken] = page.Next
			return pipeline.Continue(page), nil
		}),

		step(l.details, func(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
			page, ok := pipeline.Prev[store.Page](pc)
			if !ok {
				return pipeline.Outcome{}, fmt.Errorf("%s: unexpected previous result %T", l.details, pc.Prev)
			}
			ks := make([]keys.Key, 0, len(page.Items))
			for _, edge := range page.Items {
				id, err := keys.TrimPrefix(edge.String(l.attr), l.prefix)
				if err != nil {
					return pipeline.Outcome{}, fmt.Errorf("%s: %w", l.details, err)
				}
				k, err := r.gw.Codec().UserKey(id)
				if err != nil {
					return pipeline.Outcome{}, err
				}
				ks = append(ks, k)
			}
			users, err := r.gw.BatchGet(ctx, ks, store.BatchGetOptions{})
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.Continue(users), nil
		}),

		step(l.after, func(_ context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
			items, ok := pipeline.Prev[[]store.Item](pc)
			if !ok {
				return pipeline.Outcome{}, fmt.Errorf("%s: unexpected previous result %T", l.after, pc.Prev)
			}
			users, err := fromItems[User](items)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			next, _ := pipeline.Get[*string](pc, stashNextToken)
			return pipeline.Continue(Page[User]{Items: users, NextToken: next}), nil
		}),
	}
}
