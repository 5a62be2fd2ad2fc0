package resolvers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/store"
)

const (
	OpCreateUserAccount = "createUserAccount"
	OpGetUserAccount    = "getUserAccount"
	OpGetUserByEmail    = "getUserByEmail"
	OpUpdateUserAccount = "updateUserAccount"
	OpGetAllUsers       = "getAllUsers"
)

func (r *Resolvers) registerUsers() {
	r.register(OpCreateUserAccount,
		step("formatUserAccountInput", r.formatUserAccountInput),
		step("createUserAccount", r.createUserAccount),
	)
	r.register(OpGetUserAccount, r.getUserStep(func(pc *pipeline.Context) (string, error) {
		var args struct {
			ID string `json:"id" validate:"required"`
		}
		err := bind(pc, &args)
		return args.ID, err
	}))
	r.register(OpPostUser, r.getUserStep(sourceUserID))
	r.register(OpCommentUser, r.getUserStep(sourceUserID))
	r.register(OpGetUserByEmail, step("queryUserByEmail", r.queryUserByEmail))
	r.register(OpUpdateUserAccount,
		step("formatUpdate", r.formatUpdate),
		step("updateUser", r.updateUser),
	)
	r.register(OpGetAllUsers, listStep[User](r.gw, "queryUsers", store.PatternAllUsers, nil, false))
}

type createUserRequest struct {
	User  User
	Keys  keys.Keys
	Guard keys.Keys
}

func (r *Resolvers) formatUserAccountInput(_ context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		Input *UserInput `json:"userInput" validate:"required"`
	}
	if err := pc.Request().Bind(&args); err != nil {
		return pipeline.Outcome{}, err
	}
	if args.Input != nil {
		args.Input.Email = keys.NormalizeEmail(args.Input.Email)
		args.Input.Username = strings.TrimSpace(args.Input.Username)
	}
	if err := check(&args); err != nil {
		return pipeline.Outcome{}, err
	}
	in := args.Input

	u := User{
		ID:            r.newID(),
		Email:         in.Email,
		Username:      in.Username,
		About:         in.About,
		ProfilePicURL: in.ProfilePicURL,
		ProfilePicKey: in.ProfilePicKey,
		Address:       in.Address,
		UserType:      in.UserType,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		CreatedOn:     r.timestamp(),
	}
	k, err := r.gw.Codec().Build(keys.KindUser, keys.Fields{keys.FieldID: u.ID})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	guard, err := r.gw.Codec().Build(keys.KindUserEmail, keys.Fields{keys.FieldEmail: u.Email})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(createUserRequest{User: u, Keys: k, Guard: guard}), nil
}

// createUserAccount writes the user and its email guard row together. Either
// an existing id or an existing email fails the whole write.
func (r *Resolvers) createUserAccount(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	req, ok := pipeline.Prev[createUserRequest](pc)
	if !ok {
		return pipeline.Outcome{}, fmt.Errorf("createUserAccount: unexpected previous result %T", pc.Prev)
	}
	item, err := toItem(req.User)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	guard, err := toItem(struct {
		UserID string `dynamodbav:"userId"`
	}{req.User.ID})
	if err != nil {
		return pipeline.Outcome{}, err
	}

	err = r.gw.PutAll(ctx, []store.PutRequest{
		{Keys: req.Keys, Item: item, Condition: store.IfAbsent},
		{Keys: req.Guard, Item: guard, Condition: store.IfAbsent},
	})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(req.User), nil
}

func sourceUserID(pc *pipeline.Context) (string, error) {
	var src struct {
		UserID string `json:"userId" validate:"required"`
	}
	if err := pc.Request().BindSource(&src); err != nil {
		return "", err
	}
	return src.UserID, check(src)
}

// getUserStep reads one user by the id picked from the request. An absent
// user resolves to nil.
func (r *Resolvers) getUserStep(id func(pc *pipeline.Context) (string, error)) pipeline.Step {
	return step("getUser", func(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
		userID, err := id(pc)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		key, err := r.gw.Codec().UserKey(userID)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		item, err := r.gw.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return pipeline.Continue((*User)(nil)), nil
		}
		if err != nil {
			return pipeline.Outcome{}, err
		}
		u, err := fromItem[User](item)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		return pipeline.Continue(&u), nil
	})
}

func (r *Resolvers) queryUserByEmail(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := pc.Request().Bind(&args); err != nil {
		return pipeline.Outcome{}, err
	}
	args.Email = keys.NormalizeEmail(args.Email)
	if err := check(&args); err != nil {
		return pipeline.Outcome{}, err
	}
	page, err := r.gw.Query(ctx, store.PatternUserByEmail, keys.Fields{keys.FieldEmail: args.Email}, 1, "")
	if err != nil {
		return pipeline.Outcome{}, err
	}
	u, err := first[User](page)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(u), nil
}

type updateRequest struct {
	Key keys.Key
	Ops store.Ops
}

func (r *Resolvers) formatUpdate(_ context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	var args struct {
		ID    string           `json:"id" validate:"required"`
		Input *UpdateUserInput `json:"userInput" validate:"required"`
	}
	if err := bind(pc, &args); err != nil {
		return pipeline.Outcome{}, err
	}
	key, err := r.gw.Codec().UserKey(args.ID)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	ops := store.Ops{"updatedOn": store.Replace(r.timestamp())}
	if name := strings.TrimSpace(args.Input.Username); name != "" {
		ops["username"] = store.Replace(name)
	}
	if a := args.Input.Address; a != nil && *a != (Address{}) {
		ops["address"] = store.AddOrMerge(args.Input.Address)
	}
	return pipeline.Continue(updateRequest{Key: key, Ops: ops}), nil
}

func (r *Resolvers) updateUser(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
	req, ok := pipeline.Prev[updateRequest](pc)
	if !ok {
		return pipeline.Outcome{}, fmt.Errorf("updateUser: unexpected previous result %T", pc.Prev)
	}
	item, err := r.gw.Update(ctx, req.Key, req.Ops)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	u, err := fromItem[User](item)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	return pipeline.Continue(u), nil
}
