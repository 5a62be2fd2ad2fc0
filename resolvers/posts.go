package resolvers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/publish"
	"github.com/jacentio/socialtable/store"
)

const (
	OpCreatePost   = "createPost"
	OpGetPost      = "getPost"
	OpGetUserPosts = "getUserPosts"
	OpDeletePost   = "deletePost"
	OpGetAllPosts  = "getAllPosts"
)

// EventPostCreated is published after a post is stored.
const EventPostCreated = "postCreated"

func (r *Resolvers) registerPosts() {
	r.register(OpCreatePost,
		step("createPost", r.createPost),
		publish.NewStep(r.pub, r.metrics),
	)
	r.register(OpGetPost, step("queryPostById", r.queryPostByID))
	r.register(OpGetUserPosts, listStep[Post](r.gw, "queryUserPosts", store.PatternUserPosts,
		argField("userId", keys.FieldUserID), false))
	r.register(OpDeletePost, step("deletePost", r.deletePost))
	r.register(OpGetAllPosts, listStep[Post](r.gw, "queryPosts", store.PatternAllPosts, nil, true))
}

// createPost stores the post and stashes the postCreated event for the
// publish step.
func (r *Resolvers) createPost(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		Input *PostInput `json:"postInput" validate:"required"`
	}
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}

	p := Post{
		ID:        r.newID(),
		UserID:    args.Input.UserID,
		Content:   args.Input.Content,
		ImageURL:  args.Input.ImageURL,
		CreatedOn: r.timestamp(),
	}
	k, err := r.gw.Codec().Build(keys.KindPost, keys.Fields{keys.FieldID: p.ID, keys.FieldUserID: p.UserID})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	item, err := toItem(p)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if err := r.gw.Put(ctx, k, item, store.IfAbsent); err != nil {
		return pipeline.Outcome{}, err
	}

	pc.Stash[publish.StashEvent] = publish.Event{Type: EventPostCreated, Payload: p}
	return pipeline.Continue(p), nil
}

func (r *Resolvers) queryPostByID(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		ID string `json:"id" validate:"required"`
	}
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}
	page, err := r.gw.Query(ctx, store.PatternPostByID, keys.Fields{keys.FieldID: args.ID}, 1, "")
	if err != nil {
		return pipeline.Outcome{}, err
	}
	p, err := first[Post](page)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(p), nil
}

// deletePost removes a post and resolves to the deleted post, or nil when
// there was none.
func (r *Resolvers) deletePost(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		UserID string `json:"userId" validate:"required"`
		PostID string `json:"postId" validate:"required"`
	}
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}
	k, err := r.gw.Codec().Build(keys.KindPost, keys.Fields{keys.FieldID: args.PostID, keys.FieldUserID: args.UserID})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	old, err := r.gw.Delete(ctx, k.Key)
	if errors.Is(err, store.ErrNotFound) {
		return pipeline.Continue((*Post)(nil)), nil
	}
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("delete post %s: %w", args.PostID, err)
	}
	p, err := fromItem[Post](old)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(&p), nil
}
