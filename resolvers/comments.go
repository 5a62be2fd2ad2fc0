package resolvers

import (
	"context"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/store"
)

const (
	OpCreateComment      = "createComment"
	OpGetCommentsPerPost = "getCommentsPerPost"
)

func (r *Resolvers) registerComments() {
	r.register(OpCreateComment, step("createComment", r.createComment))
	r.register(OpGetCommentsPerPost, listStep[Comment](r.gw, "queryComments", store.PatternPostComments,
		argField("postId", keys.FieldPostID), false))
}

func (r *Resolvers) createComment(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		Input *CommentInput `json:"commentInput" validate:"required"`
	}
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}

	c := Comment{
		ID:        r.newID(),
		PostID:    args.Input.PostID,
		UserID:    args.Input.UserID,
		Comment:   args.Input.Comment,
		CreatedOn: r.timestamp(),
	}
	k, err := r.gw.Codec().Build(keys.KindComment, keys.Fields{keys.FieldID: c.ID, keys.FieldPostID: c.PostID})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	item, err := toItem(c)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if err := r.gw.Put(ctx, k, item, store.IfAbsent); err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(c), nil
}
